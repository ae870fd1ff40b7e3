package repository

import (
	"context"
	"errors"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository stores available quantity per product. Reserve must be
// a single guarded decrement so concurrent orders can never oversell.
type InventoryRepository interface {
	Reserve(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	Available(ctx context.Context, productID uuid.UUID) (int, error)
	Quantities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
	SetQuantity(ctx context.Context, productID uuid.UUID, qty int) error
}

// GormInventoryRepository keeps stock in products.quantity.
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

var returningQuantity = clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}

// Reserve runs UPDATE ... SET quantity = quantity - n WHERE id = ? AND
// quantity >= n RETURNING quantity.
func (r *GormInventoryRepository) Reserve(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	var p models.Product
	res := r.db.WithContext(ctx).Model(&p).
		Clauses(returningQuantity).
		Where("id = ? AND quantity >= ?", productID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Available(ctx, productID); err != nil {
			return 0, err
		}
		return 0, apperrors.ErrOutOfStock
	}
	return p.Quantity, nil
}

func (r *GormInventoryRepository) Release(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	var p models.Product
	res := r.db.WithContext(ctx).Model(&p).
		Clauses(returningQuantity).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", productID)
	}
	return p.Quantity, nil
}

func (r *GormInventoryRepository) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Select("id", "quantity").Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", productID)
	}
	if err != nil {
		return 0, err
	}
	return p.Quantity, nil
}

func (r *GormInventoryRepository) Quantities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Select("id", "quantity").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p.Quantity
	}
	return out, nil
}

// SetQuantity overwrites the stock level. Catalog management only.
func (r *GormInventoryRepository) SetQuantity(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).UpdateColumn("quantity", qty)
	return rowsOrNotFound(res, apperrors.ErrProductNotFound)
}
