package repository

import (
	"context"

	"github.com/aamamun24/FineMed-Server/models"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, log *models.NotificationLog) error
	List(ctx context.Context, orderID string, page, limit int) ([]models.NotificationLog, int64, error)
}

type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List returns delivery logs, optionally for one order, newest first.
func (r *GormNotificationRepository) List(ctx context.Context, orderID string, page, limit int) ([]models.NotificationLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.NotificationLog{})
	if orderID != "" {
		query = query.Where("order_id = ?", orderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.NotificationLog
	err := query.Order("created_at DESC").Scopes(paginate(page, limit)).Find(&logs).Error
	return logs, total, err
}
