package services

import (
	"context"
	"errors"
	"strings"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/aamamun24/FineMed-Server/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer is satisfied by auth.TokenService.
type TokenIssuer interface {
	GenerateTokenPair(id auth.Identity) (*auth.TokenPair, error)
	GenerateAccessToken(id auth.Identity) (string, error)
	ParseRefreshToken(token string) (*auth.Claims, error)
}

type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	log    *zap.Logger
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

// Login checks the password of the account found by email, or by phone when
// no email is given, and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*auth.TokenPair, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		user, err = s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	case strings.TrimSpace(req.Phone) != "":
		user, err = s.users.FindByPhone(ctx, req.Phone)
	default:
		return nil, apperrors.Validation("Email or phone is required")
	}
	if err != nil {
		return nil, err
	}
	if err := checkActive(user); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	s.log.Info("user logged in", zap.String("user", user.Email), zap.String("role", string(user.Role)))
	return s.tokens.GenerateTokenPair(identityOf(user))
}

// RefreshToken issues a new access token for a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.ParseRefreshToken(token)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, claims.UserEmail)
	if errors.Is(err, apperrors.ErrUserNotFound) && claims.UserPhone != "" {
		user, err = s.users.FindByPhone(ctx, claims.UserPhone)
	}
	if err != nil {
		return "", err
	}
	if err := checkActive(user); err != nil {
		return "", err
	}
	if user.PasswordChangedAt != nil && claims.IssuedBefore(*user.PasswordChangedAt) {
		return "", apperrors.ErrTokenStale
	}
	return s.tokens.GenerateAccessToken(identityOf(user))
}

func checkActive(user *models.User) error {
	if user.IsDeleted {
		return apperrors.ErrUserDeleted
	}
	if user.Status == models.UserDeactivated {
		return apperrors.ErrUserDeactivated
	}
	return nil
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{Email: u.Email, Phone: u.Phone, Role: string(u.Role)}
}
