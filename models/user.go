package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

type UserStatus string

const (
	UserActive      UserStatus = "active"
	UserDeactivated UserStatus = "deactivated"
)

// User is an account that can sign in and place orders.
type User struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name              string     `gorm:"not null" json:"name"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	Phone             string     `gorm:"index" json:"phone"`
	Address           string     `json:"address"`
	Password          string     `gorm:"not null" json:"-"`
	Role              Role       `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	Status            UserStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	IsDeleted         bool       `gorm:"not null;default:false" json:"isDeleted"`
	PasswordChangedAt *time.Time `json:"-"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// IsActive reports whether the account may act.
func (u *User) IsActive() bool {
	return !u.IsDeleted && u.Status != UserDeactivated
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address"`
	Password string `json:"password" binding:"required,min=6,max=20"`
}

// LoginRequest accepts either email or phone.
type LoginRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=20"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}
