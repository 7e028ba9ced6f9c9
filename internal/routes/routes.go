package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/config"
	"github.com/example/farmacia/internal/handlers"
	"github.com/example/farmacia/internal/middleware"
	"github.com/example/farmacia/internal/services"
)

// Deps are the shared components the HTTP layer is built from.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Payments *services.PaymentService
	Cart     *services.CartService
	Log      *zap.Logger

	// ResetSender delivers password reset codes. Codes are logged when nil.
	ResetSender services.ResetCodeSender
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	cfg := deps.Config

	authHandler := handlers.NewAuthHandler(deps.DB, cfg.JWTSecret, cfg.TokenExpires)
	productHandler := handlers.NewProductHandler(deps.DB)
	cartHandler := handlers.NewCartHandler(deps.Cart)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Cart, deps.Log)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Payments, cfg.ReconcileAfter)

	resetSender := deps.ResetSender
	if resetSender == nil {
		resetSender = services.NewLogResetCodeSender(deps.Log)
	}
	passwordResetHandler := handlers.NewPasswordResetHandler(deps.DB, resetSender, deps.Log)

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)
	auth.Post("/forgot-password", passwordResetHandler.ForgotPassword)
	auth.Post("/verify-reset-code", passwordResetHandler.VerifyResetCode)
	auth.Post("/reset-password", passwordResetHandler.ResetPassword)

	// Catalog
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Cart
	cart := api.Group("/cart", requireAuth)
	cart.Get("/", cartHandler.GetCart)
	cart.Delete("/", cartHandler.ClearCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:productID", cartHandler.UpdateItem)
	cart.Delete("/items/:productID", cartHandler.RemoveItem)

	// PayPal checkout
	checkout := api.Group("/checkout/paypal", requireAuth)
	checkout.Post("/", paymentHandler.Checkout)
	checkout.Post("/:orderID/capture", paymentHandler.Capture)

	// Payment orders
	orders := api.Group("/payments/orders", requireAuth)
	orders.Post("/", paymentHandler.CreateLocalOrder)
	orders.Get("/", paymentHandler.ListOrders)
	orders.Get("/stream", paymentHandler.StreamOrders)
	orders.Delete("/pending", paymentHandler.ClearPending)
	orders.Get("/:id", paymentHandler.GetOrder)

	// Admin
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.Get("/stats", adminHandler.DashboardStats)

	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)

	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Put("/users/:id/role", adminHandler.UpdateUserRole)
	admin.Delete("/users/:id", adminHandler.DeleteUser)

	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Put("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Post("/orders/sync", adminHandler.SyncOrders)
	admin.Post("/orders/reconcile", adminHandler.ReconcileOrders)
}
