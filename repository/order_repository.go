package repository

import (
	"context"
	"errors"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTransactionID(ctx context.Context, tranID string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error)
	ListByEmail(ctx context.Context, email string) ([]models.Order, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	Update(ctx context.Context, order *models.Order, expected models.OrderStatus, replaceItems bool) error
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	MarkPrescriptionVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var orderSortColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"totalPrice": "total_price",
	"status":     "status",
	"userEmail":  "user_email",
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its line items in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items.Product").Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, apperrors.ErrOrderNotFound, "id = ?", id)
}

func (r *GormOrderRepository) FindByTransactionID(ctx context.Context, tranID string) (*models.Order, error) {
	return r.first(ctx, apperrors.ErrTransactionNotFound, "transaction_id = ?", tranID)
}

// List retrieves orders with optional status and email filters.
func (r *GormOrderRepository) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.UserEmail != "" {
		query = query.Where("user_email = ?", normalizeEmail(f.UserEmail))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Preload("Items.Product").
		Order(orderClause(f.Sort, orderSortColumns, "created_at DESC")).
		Scopes(paginate(f.Page, f.Limit)).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListByEmail returns every order of a user, newest first.
func (r *GormOrderRepository) ListByEmail(ctx context.Context, email string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_email = ?", normalizeEmail(email)).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *GormOrderRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_email = ?", normalizeEmail(email)).Count(&count).Error
	return count, err
}

// Update saves the order row, status included, only while the stored status
// is still expected. When replaceItems is set the line items are swapped for
// order.Items in the same transaction. A status that moved on in the meantime
// yields ErrOrderChanged.
func (r *GormOrderRepository) Update(ctx context.Context, order *models.Order, expected models.OrderStatus, replaceItems bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(order).Where("status = ?", expected).Omit("Items", "created_at").Select("*").Updates(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.ErrOrderNotFound
			}
			return apperrors.ErrOrderChanged
		}
		if !replaceItems {
			return nil
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
			order.Items[i].OrderID = order.ID
		}
		return tx.Omit("Product").Create(&order.Items).Error
	})
}

// UpdateStatusIf sets status to `to` only while the current status is one of
// from. It reports whether the row changed, which makes status moves safe
// against concurrent callbacks.
func (r *GormOrderRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormOrderRepository) MarkPrescriptionVerified(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("prescription_verified", true)
	return rowsOrNotFound(res, apperrors.ErrOrderNotFound)
}

// Delete removes the order and its line items.
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Order{})
		return rowsOrNotFound(res, apperrors.ErrOrderNotFound)
	})
}

func (r *GormOrderRepository) first(ctx context.Context, notFound *apperrors.Error, query string, arg interface{}) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items.Product").Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
