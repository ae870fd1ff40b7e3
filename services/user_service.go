package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

func NewUserService(users repository.UserRepository, bcryptCost int, log *zap.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{users: users, bcryptCost: bcryptCost, log: log, now: time.Now}
}

// Register creates a customer account. Email and phone must be unused.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.users.ExistsByEmailOrPhone(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password").WithErr(err)
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Password: string(hash),
		Role:     models.RoleCustomer,
		Status:   models.UserActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user", user.Email))
	return user, nil
}

func (s *UserService) Me(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindByEmail(ctx, email)
}

// ChangePassword replaces the password after checking the old one. Tokens
// issued before the change stop working.
func (s *UserService) ChangePassword(ctx context.Context, email string, req models.ChangePasswordRequest) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return apperrors.ErrInvalidCredentials.WithMessage("Old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return apperrors.Internal("Failed to hash password").WithErr(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), s.now().UTC()); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("user", user.Email))
	return nil
}

// ToggleStatus flips a user between active and deactivated. Admins cannot
// deactivate themselves.
func (s *UserService) ToggleStatus(ctx context.Context, actorEmail string, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, apperrors.ErrUserDeleted
	}

	next := models.UserDeactivated
	if user.Status == models.UserDeactivated {
		next = models.UserActive
	}
	if next == models.UserDeactivated && strings.EqualFold(user.Email, actorEmail) {
		return nil, apperrors.Forbidden("You cannot deactivate your own account")
	}

	if err := s.users.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	user.Status = next
	s.log.Info("user status changed",
		zap.String("user", user.Email),
		zap.String("status", string(next)),
		zap.String("by", actorEmail))
	return user, nil
}
