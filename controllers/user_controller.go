package controllers

import (
	"context"

	"github.com/aamamun24/FineMed-Server/common/middleware"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Me(ctx context.Context, email string) (*models.User, error)
	ChangePassword(ctx context.Context, email string, req models.ChangePasswordRequest) error
	ToggleStatus(ctx context.Context, actorEmail string, id uuid.UUID) (*models.User, error)
}

type UserController struct {
	users UserService
}

func NewUserController(users UserService) *UserController {
	return &UserController{users: users}
}

// Register handles POST /users.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bind(c, &req) {
		return
	}
	user, err := uc.users.Register(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, "User registered successfully", user)
}

func (uc *UserController) Me(c *gin.Context) {
	user, err := uc.users.Me(c.Request.Context(), middleware.UserEmail(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "User retrieved successfully", user)
}

// ChangePassword handles PATCH /users/update-password.
func (uc *UserController) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := uc.users.ChangePassword(c.Request.Context(), middleware.UserEmail(c), req); err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Password updated successfully", nil)
}

// ToggleStatus handles PATCH /users/:userId/toggle-status.
func (uc *UserController) ToggleStatus(c *gin.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}
	user, err := uc.users.ToggleStatus(c.Request.Context(), middleware.UserEmail(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "User status updated successfully", user)
}
