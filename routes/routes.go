package routes

import (
	"net/http"

	"github.com/aamamun24/FineMed-Server/controllers"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/gin-gonic/gin"
)

// Controllers groups every handler the API exposes.
type Controllers struct {
	Auth         *controllers.AuthController
	Users        *controllers.UserController
	Products     *controllers.ProductController
	Orders       *controllers.OrderController
	Payments     *controllers.PaymentController
	Reviews      *controllers.ReviewController
	Notification *controllers.NotificationController
	Health       *controllers.HealthController
}

// Guards builds the access middleware. Authenticate with no roles admits any
// signed-in user.
type Guards struct {
	Authenticate func(roles ...models.Role) gin.HandlerFunc
	AuthLimit    gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, h Controllers, g Guards) {
	r.GET("/health", h.Health.Health)

	api := r.Group("/api/v1")

	admin := g.Authenticate(models.RoleAdmin)
	anyone := g.Authenticate(models.RoleAdmin, models.RoleCustomer)

	authRoutes := api.Group("/auth", g.AuthLimit)
	{
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/refresh-token", h.Auth.RefreshToken)
	}

	userRoutes := api.Group("/users")
	{
		userRoutes.POST("", g.AuthLimit, h.Users.Register)
		userRoutes.GET("/me", anyone, h.Users.Me)
		userRoutes.PATCH("/update-password", anyone, h.Users.ChangePassword)
		userRoutes.PATCH("/:userId/toggle-status", admin, h.Users.ToggleStatus)
	}

	productRoutes := api.Group("/products")
	{
		productRoutes.GET("", h.Products.List)
		productRoutes.GET("/:id", h.Products.Get)
		productRoutes.POST("", admin, h.Products.Create)
		productRoutes.PATCH("/:id", admin, h.Products.Update)
		productRoutes.DELETE("/:id", admin, h.Products.Delete)
	}

	orderRoutes := api.Group("/orders")
	{
		// Gateway callbacks carry no user token.
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			orderRoutes.Handle(method, "/payment-success/:transactionId", h.Payments.Success)
			orderRoutes.Handle(method, "/payment-failed/:transactionId", h.Payments.Failed)
			orderRoutes.Handle(method, "/payment-cancel/:transactionId", h.Payments.Cancel)
		}
		orderRoutes.POST("/ipn", h.Payments.Notify)

		orderRoutes.POST("", anyone, h.Orders.Create)
		orderRoutes.GET("", admin, h.Orders.List)
		orderRoutes.GET("/myOrders", anyone, h.Orders.MyOrders)
		orderRoutes.GET("/prescription-upload-url", anyone, h.Orders.PrescriptionUploadURL)
		orderRoutes.PATCH("/verify-prescription/:id", admin, h.Orders.VerifyPrescription)
		orderRoutes.GET("/:id", admin, h.Orders.Get)
		orderRoutes.PATCH("/:id", admin, h.Orders.Update)
		orderRoutes.DELETE("/:id", admin, h.Orders.Delete)
	}

	reviewRoutes := api.Group("/reviews")
	{
		reviewRoutes.GET("", h.Reviews.List)
		reviewRoutes.POST("", anyone, h.Reviews.Create)
		reviewRoutes.DELETE("/:id", admin, h.Reviews.Delete)
	}

	api.GET("/notifications/logs", admin, h.Notification.Logs)
}
