package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/handlers"
	"github.com/ArowuTest/edunotify-backend/internal/middleware"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheck reports whether a backing store is reachable
type HealthCheck func(ctx context.Context) error

// HandlerDependencies holds everything the router wires together
type HandlerDependencies struct {
	AuthHandler     *handlers.AuthHandler
	TemplateHandler *handlers.TemplateHandler
	DispatchHandler *handlers.DispatchHandler
	DeliveryHandler *handlers.DeliveryHandler
	GatewayHandler  *handlers.GatewayHandler

	Tokens       *jwt.TokenService
	Log          *logrus.Logger
	AllowedHosts []string

	// Metrics is served at MetricsPath when non-nil
	Metrics     http.Handler
	MetricsPath string

	HealthChecks map[string]HealthCheck
}

// SetupRouter sets up the router
func SetupRouter(deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(deps.AllowedHosts))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(deps.Log))

	router.GET("/health", healthHandler(deps.HealthChecks))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(deps.Metrics))
	}

	// Public routes
	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", deps.AuthHandler.Login)
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(deps.Tokens, deps.Log))
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	{
		protected.POST("/auth/register", adminOnly, deps.AuthHandler.Register)

		templates := protected.Group("/templates")
		{
			templates.GET("", deps.TemplateHandler.ListTemplates)
			templates.POST("", deps.TemplateHandler.CreateTemplate)
			templates.POST("/seed", adminOnly, deps.TemplateHandler.SeedTemplates)
			templates.GET("/:code", deps.TemplateHandler.GetTemplate)
			templates.PUT("/:code", deps.TemplateHandler.UpdateTemplate)
			templates.DELETE("/:code", deps.TemplateHandler.DeleteTemplate)
			templates.GET("/:code/preview", deps.TemplateHandler.PreviewTemplate)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.POST("/dispatch", deps.DispatchHandler.Dispatch)
			notifications.POST("/absentees", deps.DispatchHandler.NotifyAbsentees)
			notifications.POST("/fee-balance", deps.DispatchHandler.NotifyFeeBalance)
			notifications.POST("/retry", deps.DispatchHandler.RetryFailed)
		}

		deliveries := protected.Group("/deliveries")
		{
			deliveries.GET("", deps.DeliveryHandler.ListDeliveries)
			deliveries.GET("/statistics", deps.DeliveryHandler.GetStatistics)
			deliveries.GET("/:id", deps.DeliveryHandler.GetDelivery)
			deliveries.POST("/:id/delivered", adminOnly, deps.DeliveryHandler.MarkDelivered)
			deliveries.POST("/:id/cancel", deps.DeliveryHandler.CancelDelivery)
		}

		gateway := protected.Group("/gateway")
		{
			gateway.GET("", deps.GatewayHandler.GetGateway)
			gateway.PUT("", adminOnly, deps.GatewayHandler.ConfigureGateway)
			gateway.POST("/test", adminOnly, deps.GatewayHandler.TestGateway)
		}
	}

	return router
}

// healthHandler pings every registered store. Any failure turns the
// response into a 503.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	}
}
