package controllers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/common/middleware"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter returns an engine with the error envelope installed. When email
// is set every request runs as that user.
func newRouter(email string) *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(zap.NewNop()))
	if email != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserEmail, email)
			c.Set(middleware.ContextUserRole, string(models.RoleCustomer))
			c.Next()
		})
	}
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type mockOrderService struct{ mock.Mock }

func (m *mockOrderService) CreateOrder(ctx context.Context, email string, req models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	args := m.Called(ctx, email, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateOrderResult), args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderService) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, models.PaginationMeta, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Order), args.Get(1).(models.PaginationMeta), args.Error(2)
}

func (m *mockOrderService) MyOrders(ctx context.Context, email string) ([]models.Order, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req models.UpdateOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOrderService) VerifyPrescription(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderService) PrescriptionUploadURL(ctx context.Context, email, contentType string) (*awspkg.PresignedUpload, error) {
	args := m.Called(ctx, email, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awspkg.PresignedUpload), args.Error(1)
}

type mockPaymentService struct{ mock.Mock }

func (m *mockPaymentService) OnPaymentSuccess(ctx context.Context, tranID, reference string) (string, error) {
	args := m.Called(ctx, tranID, reference)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentService) OnPaymentFailure(ctx context.Context, tranID string) (string, error) {
	args := m.Called(ctx, tranID)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentService) OnPaymentCancel(ctx context.Context, tranID string) (string, error) {
	args := m.Called(ctx, tranID)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentService) OnPaymentNotify(ctx context.Context, payload []byte, signature string) (*services.NotifyResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.NotifyResult), args.Error(1)
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Login(ctx context.Context, req models.LoginRequest) (*auth.TokenPair, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) Me(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) ChangePassword(ctx context.Context, email string, req models.ChangePasswordRequest) error {
	return m.Called(ctx, email, req).Error(0)
}

func (m *mockUserService) ToggleStatus(ctx context.Context, actorEmail string, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, actorEmail, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockProductService struct{ mock.Mock }

func (m *mockProductService) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProductService) List(ctx context.Context, q models.ProductQuery) ([]models.Product, models.PaginationMeta, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]models.Product), args.Get(1).(models.PaginationMeta), args.Error(2)
}

func (m *mockProductService) Update(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProductService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
