package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the identity carried by FineMed tokens.
type Claims struct {
	UserEmail string `json:"userEmail"`
	UserPhone string `json:"userPhone,omitempty"`
	Role      string `json:"role"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the subject a token is issued for.
type Identity struct {
	Email string
	Phone string
	Role  string
}

// TokenPair holds the generated access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService signs and verifies HS256 tokens. Access and refresh tokens use
// different secrets, so one can never be replayed as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("jwt secrets must be set")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// GenerateTokenPair issues an access token and a refresh token with a fresh jti.
func (s *TokenService) GenerateTokenPair(id Identity) (*TokenPair, error) {
	access, err := s.GenerateAccessToken(id)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(id, TypeRefresh, s.refreshTTL, s.refreshSecret, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) GenerateAccessToken(id Identity) (string, error) {
	return s.sign(id, TypeAccess, s.accessTTL, s.accessSecret, "")
}

// ParseAccessToken verifies an access token. A "Bearer " prefix is accepted.
func (s *TokenService) ParseAccessToken(token string) (*Claims, error) {
	return s.parse(token, TypeAccess, s.accessSecret)
}

func (s *TokenService) ParseRefreshToken(token string) (*Claims, error) {
	return s.parse(token, TypeRefresh, s.refreshSecret)
}

func (s *TokenService) sign(id Identity, typ string, ttl time.Duration, secret []byte, jti string) (string, error) {
	now := s.now()
	claims := Claims{
		UserEmail: id.Email,
		UserPhone: id.Phone,
		Role:      id.Role,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *TokenService) parse(raw, typ string, secret []byte) (*Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, apperrors.ErrUnauthorized.WithMessage("No authorization token provided")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperrors.ErrTokenExpired
	case err != nil || !token.Valid:
		return nil, apperrors.ErrInvalidToken.WithErr(err)
	case claims.Type != typ || claims.UserEmail == "":
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// IssuedBefore reports whether the token predates t, truncated to seconds.
func (c *Claims) IssuedBefore(t time.Time) bool {
	if c.IssuedAt == nil || t.IsZero() {
		return false
	}
	return c.IssuedAt.Time.Before(t.Truncate(time.Second))
}
