package services

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductService struct {
	repo      repository.ProductRepository
	inventory *InventoryService
	cache     ProductCache
	log       *zap.Logger
}

// NewProductService wires the catalog. cache may be nil.
func NewProductService(repo repository.ProductRepository, inventory *InventoryService, cache ProductCache, log *zap.Logger) *ProductService {
	if cache == nil {
		cache = noopCache{}
	}
	return &ProductService{repo: repo, inventory: inventory, cache: cache, log: log}
}

func (s *ProductService) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	if err := validateProductFields(&req.Price, &req.Category); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:                 strings.TrimSpace(req.Name),
		Image:                req.Image,
		Brand:                req.Brand,
		Price:                req.Price,
		Form:                 req.Form,
		Category:             req.Category,
		Symptoms:             req.Symptoms,
		Description:          req.Description,
		Quantity:             *req.Quantity,
		PrescriptionRequired: *req.PrescriptionRequired,
		Manufacturer:         req.Manufacturer,
		ExpiryDate:           req.ExpiryDate,
	}
	if p.Image == "" {
		p.Image = models.DefaultProductImage
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if s.inventory.External() {
		if err := s.inventory.SetQuantity(ctx, p.ID, p.Quantity); err != nil {
			return nil, err
		}
	}

	s.cache.InvalidateProduct(ctx, "")
	s.log.Info("product created", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.cache.GetProduct(ctx, id.String()); ok {
		products := []models.Product{*p}
		if err := s.refreshStock(ctx, products); err != nil {
			return nil, err
		}
		return &products[0], nil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	products := []models.Product{*p}
	if err := s.inventory.Overlay(ctx, products); err != nil {
		return nil, err
	}
	s.cache.SetProductAsync(&products[0])
	return &products[0], nil
}

// List serves the catalog query. Cached pages get current stock levels
// before they are returned.
func (s *ProductService) List(ctx context.Context, q models.ProductQuery) ([]models.Product, models.PaginationMeta, error) {
	q.Page, q.Limit = repository.NormalizePage(q.Page, q.Limit)
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, models.PaginationMeta{}, apperrors.Validation("minPrice cannot exceed maxPrice")
	}

	if page, ok := s.cache.GetList(ctx, q); ok {
		if err := s.refreshStock(ctx, page.Products); err != nil {
			return nil, models.PaginationMeta{}, err
		}
		return page.Products, page.Meta, nil
	}

	products, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, models.PaginationMeta{}, err
	}
	if err := s.inventory.Overlay(ctx, products); err != nil {
		return nil, models.PaginationMeta{}, err
	}
	meta := models.NewPaginationMeta(q.Page, q.Limit, total)
	s.cache.SetListAsync(q, &ProductPage{Products: products, Meta: meta})
	return products, meta, nil
}

// Update applies a partial update. Quantity goes through the ledger so it is
// never overwritten by a stale catalog write.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) (*models.Product, error) {
	if err := validateProductFields(req.Price, req.Category); err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Image != nil {
		p.Image = *req.Image
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Form != nil {
		p.Form = *req.Form
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Symptoms != nil {
		p.Symptoms = req.Symptoms
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.PrescriptionRequired != nil {
		p.PrescriptionRequired = *req.PrescriptionRequired
	}
	if req.Manufacturer != nil {
		p.Manufacturer = *req.Manufacturer
	}
	if req.ExpiryDate != nil {
		p.ExpiryDate = *req.ExpiryDate
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if req.Quantity != nil {
		if err := s.inventory.SetQuantity(ctx, id, *req.Quantity); err != nil {
			return nil, err
		}
		p.Quantity = *req.Quantity
	} else {
		products := []models.Product{*p}
		if err := s.inventory.Overlay(ctx, products); err != nil {
			return nil, err
		}
		*p = products[0]
	}

	s.cache.InvalidateProduct(ctx, id.String())
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateProduct(ctx, id.String())
	s.log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *ProductService) refreshStock(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	qs, err := s.inventory.Quantities(ctx, ids)
	if err != nil {
		return err
	}
	for i := range products {
		if q, ok := qs[products[i].ID]; ok {
			products[i].Quantity = q
		}
	}
	return nil
}

func validateProductFields(price *decimal.Decimal, category *models.Category) error {
	if price != nil && price.IsNegative() {
		return apperrors.ErrValidation.WithDetails([]apperrors.FieldError{{Field: "price", Message: "price must be at least 0"}})
	}
	if category != nil && !category.Valid() {
		return apperrors.ErrValidation.WithDetails([]apperrors.FieldError{{Field: "category", Message: "category is not a known medicine category"}})
	}
	return nil
}

func optBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func optDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

type noopCache struct{}

func (noopCache) GetList(context.Context, models.ProductQuery) (*ProductPage, bool) { return nil, false }
func (noopCache) SetListAsync(models.ProductQuery, *ProductPage)                   {}
func (noopCache) GetProduct(context.Context, string) (*models.Product, bool)       { return nil, false }
func (noopCache) SetProductAsync(*models.Product)                                  {}
func (noopCache) InvalidateProduct(context.Context, string)                        {}
