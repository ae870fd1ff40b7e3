package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/common/logger"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const refreshCookie = "refreshToken"

type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*auth.TokenPair, error)
	RefreshToken(ctx context.Context, token string) (string, error)
}

type AuthController struct {
	auth         AuthService
	refreshTTL   time.Duration
	secureCookie bool
}

// NewAuthController builds the handler. secureCookie should be true outside
// development so the refresh cookie is only sent over HTTPS.
func NewAuthController(svc AuthService, refreshTTL time.Duration, secureCookie bool) *AuthController {
	return &AuthController{auth: svc, refreshTTL: refreshTTL, secureCookie: secureCookie}
}

// Login handles POST /auth/login.
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bind(c, &req) {
		return
	}

	pair, err := ac.auth.Login(c.Request.Context(), req)
	if err != nil {
		logger.Warn(c.Request.Context(), "login failed", zap.String("email", req.Email), zap.String("phone", req.Phone))
		_ = c.Error(err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, pair.RefreshToken, int(ac.refreshTTL.Seconds()), "/", "", ac.secureCookie, true)
	response.OK(c, "User logged in successfully", gin.H{"accessToken": pair.AccessToken})
}

// RefreshToken handles POST /auth/refresh-token. The token is read from the
// cookie, falling back to the request body.
func (ac *AuthController) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshCookie)
	if token == "" {
		var req models.RefreshTokenRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}
	if token == "" {
		_ = c.Error(apperrors.ErrUnauthorized.WithMessage("Refresh token is required"))
		return
	}

	access, err := ac.auth.RefreshToken(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Access token is retrieved successfully", gin.H{"accessToken": access})
}
