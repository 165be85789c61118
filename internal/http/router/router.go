package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-market-backend/internal/config"
	"github.com/ignatzorin/freelance-market-backend/internal/http/handlers"
	"github.com/ignatzorin/freelance-market-backend/internal/http/middleware"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Вебхуки Stripe: без авторизации, аутентификация — подпись запроса.
	// Rate limit на них не вешается, чтобы ретраи Stripe не отбивались.
	api.POST("/payments/webhook", paymentHandler.Webhook)
	api.POST("/payments/connect-webhook", paymentHandler.ConnectWebhook)

	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders", orderHandler.List)
		protected.GET("/orders/:orderId", middleware.UUIDValidator("orderId"), orderHandler.Get)
		protected.PATCH("/orders/:orderId/status", middleware.UUIDValidator("orderId"), orderHandler.UpdateStatus)
		protected.POST("/orders/:orderId/messages", middleware.UUIDValidator("orderId"), orderHandler.SendMessage)
		protected.GET("/orders/:orderId/messages", middleware.UUIDValidator("orderId"), orderHandler.ListMessages)

		protected.POST("/payments/create-payment-intent", paymentHandler.CreatePaymentIntent)
		protected.GET("/payments/:paymentId", middleware.UUIDValidator("paymentId"), paymentHandler.Get)

		// Подключённый счёт — только для фрилансеров: клиенту и админу
		// онбордить выплатной счёт нечем.
		protected.POST("/payments/create-connect-account",
			middleware.RequireRole(models.RoleFreelancer),
			paymentHandler.CreateConnectAccount)
		protected.GET("/payments/account-status",
			middleware.RequireRole(models.RoleFreelancer),
			paymentHandler.AccountStatus)

		protected.POST("/payments/:paymentId/release",
			middleware.UUIDValidator("paymentId"),
			middleware.RequireRole(models.RoleAdmin),
			paymentHandler.Release)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)
	}

	return r
}
