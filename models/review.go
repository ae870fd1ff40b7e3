package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserName   string    `gorm:"not null" json:"userName"`
	UserEmail  string    `gorm:"not null;index" json:"userEmail"`
	ReviewText string    `gorm:"not null" json:"reviewText"`
	OrderCount int64     `gorm:"not null" json:"orderCount"`
	StarCount  int       `gorm:"not null;check:star_count BETWEEN 1 AND 5" json:"starCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type CreateReviewRequest struct {
	ReviewText string `json:"reviewText" binding:"required"`
	StarCount  int    `json:"starCount" binding:"required,min=1,max=5"`
}
