// internal/app/router.go
package app

import (
	authHandler "cpaas-console/internal/handlers/auth"
	messagingHandler "cpaas-console/internal/handlers/messaging"
	metricsHandler "cpaas-console/internal/handlers/metrics"
	oauthHandler "cpaas-console/internal/handlers/oauth"
	rolesHandler "cpaas-console/internal/handlers/roles"
	secretsHandler "cpaas-console/internal/handlers/secrets"
	wsHandler "cpaas-console/internal/handlers/websocket"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	OAuthHandler     *oauthHandler.OAuthHandler
	MessagingHandler *messagingHandler.MessagingHandler
	SecretsHandler   *secretsHandler.SecretsHandler
	RoleHandler      *rolesHandler.RoleHandler
	MetricsHandler   *metricsHandler.MetricsHandler
	WSHandler        *wsHandler.WebSocketHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== OAuth popup callback ====================
	r.GET("/oauth/callback", h.OAuthHandler.Callback)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/signup", h.AuthHandler.Signup)
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	// ==================== OAuth Flows ====================
	oauthRoutes := api.Group("/oauth")
	{
		oauthRoutes.POST("/:provider/begin", h.OAuthHandler.Begin)
		oauthRoutes.GET("/flows/:id", h.OAuthHandler.GetFlow)
		oauthRoutes.POST("/flows/:id/signals", h.OAuthHandler.Signal)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.GetMe)
		authProtected.GET("/sessions", h.AuthHandler.GetActiveSessions)
	}

	// ==================== Messaging ====================
	messages := api.Group("/messages")
	messages.Use(h.AuthMiddleware.Auth())
	{
		messages.POST("/send", h.MessagingHandler.Send)
		messages.POST("/bulk", h.MessagingHandler.Bulk)
		messages.POST("/bulk/csv", h.MessagingHandler.BulkCSV)
	}

	// ==================== Secrets ====================
	secrets := api.Group("/secrets")
	secrets.Use(h.AuthMiddleware.Auth())
	{
		secrets.GET("", h.SecretsHandler.Get)
		secrets.PUT("", h.SecretsHandler.Put)
		secrets.DELETE("", h.SecretsHandler.Clear)
	}

	// ==================== Roles ====================
	roles := api.Group("/roles")
	roles.Use(h.AuthMiddleware.Auth())
	{
		roles.GET("", h.RoleHandler.List)
		roles.POST("", h.RoleHandler.Create)
		roles.PUT("/:id", h.RoleHandler.Update)
		roles.DELETE("/:id", h.RoleHandler.Delete)
	}

	// ==================== Metrics & Activity ====================
	metrics := api.Group("/metrics")
	metrics.Use(h.AuthMiddleware.Auth())
	{
		metrics.GET("/summary", h.MetricsHandler.Summary)
		metrics.GET("/usage", h.MetricsHandler.Usage)
	}

	activity := api.Group("/activity")
	activity.Use(h.AuthMiddleware.Auth())
	{
		activity.GET("", h.MetricsHandler.Activity)
		activity.GET("/:id", h.MetricsHandler.Job)
	}

	api.GET("/ws/stats", h.AuthMiddleware.Auth(), h.WSHandler.GetStats)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
