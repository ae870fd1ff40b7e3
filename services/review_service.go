package services

import (
	"context"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/google/uuid"
)

type ReviewService struct {
	reviews repository.ReviewRepository
	users   repository.UserRepository
	orders  repository.OrderRepository
}

func NewReviewService(reviews repository.ReviewRepository, users repository.UserRepository, orders repository.OrderRepository) *ReviewService {
	return &ReviewService{reviews: reviews, users: users, orders: orders}
}

// Create posts a review for a customer with at least one order. The review
// records how many orders the customer had at that time.
func (s *ReviewService) Create(ctx context.Context, email string, req models.CreateReviewRequest) (*models.Review, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	count, err := s.orders.CountByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.ErrNoOrders
	}

	review := &models.Review{
		UserName:   user.Name,
		UserEmail:  user.Email,
		ReviewText: req.ReviewText,
		OrderCount: count,
		StarCount:  req.StarCount,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) List(ctx context.Context) ([]models.Review, error) {
	return s.reviews.List(ctx)
}

func (s *ReviewService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.reviews.Delete(ctx, id)
}
