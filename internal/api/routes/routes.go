package routes

import (
	"fleet-alerts/internal/api/handlers"
	"fleet-alerts/internal/api/middleware"
	"fleet-alerts/internal/services"
	"fleet-alerts/pkg/jwt"
	"fleet-alerts/pkg/ratelimit"
	"fleet-alerts/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the HTTP surface needs. DB, SQLDB,
// Redis and Jobs only feed the health report and may be nil.
type Dependencies struct {
	AlertService *services.AlertService
	Checks       handlers.CheckRunner
	JWT          *jwt.JWTUtil
	Limiter      ratelimit.Limiter
	DB           *mongo.Database
	SQLDB        *gorm.DB
	Redis        *redis.Client
	Jobs         handlers.JobLister
	Logger       *zap.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)
	if deps.SQLDB != nil {
		healthHandler.SetSQLStore(deps.SQLDB)
	}
	if deps.Jobs != nil {
		healthHandler.SetJobLister(deps.Jobs)
	}
	alertHandler := handlers.NewAlertHandler(deps.AlertService, deps.Checks, logger)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.JWT))

	limit := func(category string) gin.HandlerFunc {
		if deps.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(deps.Limiter, category, logger)
	}

	alerts := api.Group("/alerts")
	{
		read := limit(ratelimit.CategoryRead)
		alerts.GET("", read, alertHandler.GetAlerts)
		alerts.GET("/active", read, alertHandler.GetActiveAlerts)
		alerts.GET("/stats", read, alertHandler.GetStats)
		alerts.GET("/by-type", read, alertHandler.GetByType)
		alerts.GET("/:id", read, alertHandler.GetAlert)

		write := limit(ratelimit.CategoryWrite)
		alerts.PATCH("/:id/acknowledge", write, alertHandler.AcknowledgeAlert)
		alerts.PATCH("/:id/resolve", write, alertHandler.ResolveAlert)

		checks := alerts.Group("/checks", limit(ratelimit.CategoryChecks))
		{
			checks.POST("", alertHandler.RunAllChecks)
			checks.POST("/documents", alertHandler.RunDocumentCheck)
			checks.POST("/stock", alertHandler.RunStockCheck)
			checks.POST("/maintenance", alertHandler.RunMaintenanceCheck)
		}
	}
}
