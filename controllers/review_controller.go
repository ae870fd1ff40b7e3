package controllers

import (
	"context"

	"github.com/aamamun24/FineMed-Server/common/middleware"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReviewService interface {
	Create(ctx context.Context, email string, req models.CreateReviewRequest) (*models.Review, error)
	List(ctx context.Context) ([]models.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReviewController struct {
	reviews ReviewService
}

func NewReviewController(reviews ReviewService) *ReviewController {
	return &ReviewController{reviews: reviews}
}

func (rc *ReviewController) Create(c *gin.Context) {
	var req models.CreateReviewRequest
	if !bind(c, &req) {
		return
	}
	review, err := rc.reviews.Create(c.Request.Context(), middleware.UserEmail(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, "Review created successfully", review)
}

func (rc *ReviewController) List(c *gin.Context) {
	reviews, err := rc.reviews.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Reviews retrieved successfully", reviews)
}

func (rc *ReviewController) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := rc.reviews.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Review deleted successfully", nil)
}
