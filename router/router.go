package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/config"
	"github.com/yeremiapane/pix-checkout/controllers"
	"github.com/yeremiapane/pix-checkout/middlewares"
	"github.com/yeremiapane/pix-checkout/services"
)

// SetupRouter wires the HTTP surface: public checkout endpoints, the
// webhook receivers, and the authenticated admin group.
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.AllowOrigin))
	r.Use(middlewares.LoggerMiddleware())

	rateLimiter := middlewares.NewRateLimiter(50, 1)
	r.Use(rateLimiter.RateLimit())

	keystore := services.NewKeyStoreService(db)
	gateway := services.NewAsaasService(cfg.IsSandbox(), cfg.GatewayURL)
	payments := services.NewPaymentService(db, gateway, keystore)

	userCtrl := controllers.NewUserController(db)
	checkoutCtrl := controllers.NewCheckoutController(db, payments, cfg.IsSandbox())
	webhookCtrl := controllers.NewWebhookController(db, payments)
	statusCtrl := controllers.NewStatusController(db)
	orderCtrl := controllers.NewOrderController(db)
	apiKeyCtrl := controllers.NewApiKeyController(db, keystore)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.POST("/api/checkout", checkoutCtrl.CreateCheckout)
	r.GET("/api/check-payment-status", statusCtrl.CheckPaymentStatus)

	// The simulator route exists so local development and tests can
	// deliver events without the real gateway; both share one handler.
	r.POST("/api/webhook", webhookCtrl.HandleWebhook)
	r.POST("/api/webhook-simulator", webhookCtrl.HandleWebhook)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.GET("/events/ws", controllers.EventsHandler)

	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
	auth.DELETE("/orders/:order_id", orderCtrl.DeleteOrder)
	auth.GET("/orders/:order_id/card-attempts", orderCtrl.GetCardAttempts)
	auth.GET("/webhook-logs", orderCtrl.GetWebhookLogs)

	auth.GET("/api-keys", apiKeyCtrl.ListKeys)
	auth.POST("/api-keys", apiKeyCtrl.AddKey)
	auth.PATCH("/api-keys/:key_id/toggle", apiKeyCtrl.ToggleKey)
	auth.POST("/api-keys/:key_id/pin", apiKeyCtrl.PinKey)
	auth.DELETE("/api-keys/:key_id/pin", apiKeyCtrl.UnpinKey)

	return r
}
