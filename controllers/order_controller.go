package controllers

import (
	"context"

	"github.com/aamamun24/FineMed-Server/common/logger"
	"github.com/aamamun24/FineMed-Server/common/middleware"
	"github.com/aamamun24/FineMed-Server/common/response"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, email string, req models.CreateOrderRequest) (*models.CreateOrderResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, models.PaginationMeta, error)
	MyOrders(ctx context.Context, email string) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req models.UpdateOrderRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	VerifyPrescription(ctx context.Context, id uuid.UUID) (*models.Order, error)
	PrescriptionUploadURL(ctx context.Context, email, contentType string) (*awspkg.PresignedUpload, error)
}

type OrderController struct {
	orders OrderService
}

func NewOrderController(orders OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Create handles POST /orders. The customer is the authenticated caller.
func (oc *OrderController) Create(c *gin.Context) {
	var req models.CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	res, err := oc.orders.CreateOrder(c.Request.Context(), middleware.UserEmail(c), req)
	if err != nil {
		logger.Warn(c.Request.Context(), "order creation failed", zap.String("user", middleware.UserEmail(c)), zap.Error(err))
		_ = c.Error(err)
		return
	}
	response.Created(c, "Order created successfully", res)
}

// List handles GET /orders for admins.
func (oc *OrderController) List(c *gin.Context) {
	f := models.OrderFilter{
		Status:    models.OrderStatus(c.Query("status")),
		UserEmail: c.Query("userEmail"),
		Sort:      c.Query("sort"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	}
	orders, meta, err := oc.orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Paginated(c, "Orders retrieved successfully", orders, meta)
}

func (oc *OrderController) MyOrders(c *gin.Context) {
	orders, err := oc.orders.MyOrders(c.Request.Context(), middleware.UserEmail(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Orders retrieved successfully", orders)
}

func (oc *OrderController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Order retrieved successfully", order)
}

func (oc *OrderController) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateOrderRequest
	if !bind(c, &req) {
		return
	}
	order, err := oc.orders.UpdateOrder(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Order updated successfully", order)
}

func (oc *OrderController) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := oc.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Order deleted successfully", nil)
}

// VerifyPrescription handles PATCH /orders/verify-prescription/:id.
func (oc *OrderController) VerifyPrescription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.VerifyPrescription(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Prescription verified successfully", order)
}

// PrescriptionUploadURL handles GET /orders/prescription-upload-url?contentType=.
func (oc *OrderController) PrescriptionUploadURL(c *gin.Context) {
	upload, err := oc.orders.PrescriptionUploadURL(c.Request.Context(), middleware.UserEmail(c), c.Query("contentType"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.OK(c, "Upload URL generated successfully", upload)
}
