package repository

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository defines catalog data access. Stock changes go through
// InventoryRepository instead.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, q models.ProductQuery) ([]models.Product, int64, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var productSortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"brand":      "brand",
	"category":   "category",
	"quantity":   "quantity",
	"expiryDate": "expiry_date",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

var productFieldColumns = map[string]string{
	"name":                 "name",
	"image":                "image",
	"brand":                "brand",
	"price":                "price",
	"form":                 "form",
	"category":             "category",
	"symptoms":             "symptoms",
	"description":          "description",
	"quantity":             "quantity",
	"prescriptionRequired": "prescription_required",
	"manufacturer":         "manufacturer",
	"expiryDate":           "expiry_date",
	"createdAt":            "created_at",
	"updatedAt":            "updated_at",
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByIDs returns the products that exist; missing ids are simply absent.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

// List applies search, filters, sorting, field selection and pagination.
func (r *GormProductRepository) List(ctx context.Context, q models.ProductQuery) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})

	if term := strings.TrimSpace(q.SearchTerm); term != "" {
		like := "%" + term + "%"
		query = query.Where("name ILIKE ? OR category ILIKE ? OR brand ILIKE ?", like, like, like)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Form != "" {
		query = query.Where("form = ?", q.Form)
	}
	if q.Brand != "" {
		query = query.Where("brand = ?", q.Brand)
	}
	if q.PrescriptionRequired != nil {
		query = query.Where("prescription_required = ?", *q.PrescriptionRequired)
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if cols := selectColumns(q.Fields); len(cols) > 0 {
		query = query.Select(cols)
	}

	var products []models.Product
	err := query.
		Order(orderClause(q.Sort, productSortColumns, "created_at DESC")).
		Scopes(paginate(q.Page, q.Limit)).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update saves catalog fields. quantity is omitted so concurrent reservations
// are never overwritten by a stale read.
func (r *GormProductRepository) Update(ctx context.Context, p *models.Product) error {
	res := r.db.WithContext(ctx).Model(p).Omit("quantity", "created_at").Select("*").Updates(p)
	return rowsOrNotFound(res, apperrors.ErrProductNotFound)
}

// Delete soft-deletes the product.
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return rowsOrNotFound(res, apperrors.ErrProductNotFound)
}

func selectColumns(fields string) []string {
	if strings.TrimSpace(fields) == "" {
		return nil
	}
	cols := []string{"id"}
	for _, f := range strings.Split(fields, ",") {
		if col, ok := productFieldColumns[strings.TrimSpace(f)]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 1 {
		return nil
	}
	return cols
}
