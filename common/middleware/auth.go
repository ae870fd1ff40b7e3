package middleware

import (
	"context"
	"errors"
	"slices"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserEmail = "userEmail"
	ContextUserRole  = "role"
)

// AccessTokenParser is satisfied by auth.TokenService.
type AccessTokenParser interface {
	ParseAccessToken(token string) (*auth.Claims, error)
}

// UserLookup resolves the account behind a token.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
}

// Authenticate verifies the access token in the Authorization header, checks
// the account is still usable and, when roles are given, that it holds one of
// them. The caller's email and role are stored on the context.
func Authenticate(tokens AccessTokenParser, users UserLookup, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.ParseAccessToken(c.GetHeader("Authorization"))
		if err != nil {
			apperrors.Write(c, err)
			return
		}

		ctx := c.Request.Context()
		user, err := users.FindByEmail(ctx, claims.UserEmail)
		if errors.Is(err, apperrors.ErrUserNotFound) && claims.UserPhone != "" {
			user, err = users.FindByPhone(ctx, claims.UserPhone)
		}
		if err != nil {
			apperrors.Write(c, err)
			return
		}

		switch {
		case user.IsDeleted:
			apperrors.Write(c, apperrors.ErrUserDeleted)
			return
		case user.Status == models.UserDeactivated:
			apperrors.Write(c, apperrors.ErrUserDeactivated)
			return
		case user.PasswordChangedAt != nil && claims.IssuedBefore(*user.PasswordChangedAt):
			apperrors.Write(c, apperrors.ErrTokenStale)
			return
		case len(roles) > 0 && !slices.Contains(roles, user.Role):
			apperrors.Write(c, apperrors.ErrInsufficientRole)
			return
		}

		c.Set(ContextUserEmail, user.Email)
		c.Set(ContextUserRole, string(user.Role))
		c.Next()
	}
}

// UserEmail returns the authenticated caller's email, or "".
func UserEmail(c *gin.Context) string {
	return c.GetString(ContextUserEmail)
}

func UserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
