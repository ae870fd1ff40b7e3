package controllers

import (
	"context"
	"strconv"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductService interface {
	Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, q models.ProductQuery) ([]models.Product, models.PaginationMeta, error)
	Update(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProductController struct {
	products ProductService
}

func NewProductController(products ProductService) *ProductController {
	return &ProductController{products: products}
}

func (pc *ProductController) Create(c *gin.Context) {
	var req models.CreateProductRequest
	if !bind(c, &req) {
		return
	}
	p, err := pc.products.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, "Product created successfully", p)
}

// List handles GET /products with search, filters, sorting, field selection
// and pagination taken from the query string.
func (pc *ProductController) List(c *gin.Context) {
	q, err := parseProductQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	products, meta, err := pc.products.List(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Paginated(c, "Products retrieved successfully", products, meta)
}

func (pc *ProductController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := pc.products.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Product retrieved successfully", p)
}

func (pc *ProductController) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if !bind(c, &req) {
		return
	}
	p, err := pc.products.Update(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Product updated successfully", p)
}

func (pc *ProductController) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := pc.products.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Product deleted successfully", nil)
}

func parseProductQuery(c *gin.Context) (models.ProductQuery, error) {
	q := models.ProductQuery{
		SearchTerm: c.Query("searchTerm"),
		Category:   c.Query("category"),
		Form:       c.Query("form"),
		Brand:      c.Query("brand"),
		Sort:       c.Query("sort"),
		Fields:     c.Query("fields"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	}
	if raw := c.Query("prescriptionRequired"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperrors.Validation("prescriptionRequired must be true or false")
		}
		q.PrescriptionRequired = &b
	}
	for key, dst := range map[string]**decimal.Decimal{"minPrice": &q.MinPrice, "maxPrice": &q.MaxPrice} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return q, apperrors.Validation(key + " must be a number")
		}
		*dst = &d
	}
	return q, nil
}
