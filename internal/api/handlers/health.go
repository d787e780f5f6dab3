package handlers

import (
	"context"
	"net/http"
	"time"

	"fleet-alerts/pkg/database"
	"fleet-alerts/pkg/redis"
	"fleet-alerts/pkg/scheduler"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const healthCheckTimeout = 5 * time.Second

// JobLister reports the registered scheduler jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

type HealthHandler struct {
	db          *mongo.Database
	sqlDB       *gorm.DB
	redisClient *redis.Client
	jobs        JobLister
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
	Jobs      []scheduler.JobInfo    `json:"jobs,omitempty"`
}

// NewHealthHandler reports on MongoDB and, when configured, Redis. A nil
// redisClient means the cache is disabled and is not counted as a failure.
func NewHealthHandler(db *mongo.Database, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
	}
}

// SetSQLStore adds the SQL alert store to the report.
func (h *HealthHandler) SetSQLStore(db *gorm.DB) {
	h.sqlDB = db
}

func (h *HealthHandler) SetJobLister(jobs JobLister) {
	h.jobs = jobs
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	mongoStatus := h.checkMongoDB(ctx)
	response.Services["mongodb"] = mongoStatus
	if !mongoStatus["healthy"].(bool) {
		overallHealthy = false
	}

	if h.sqlDB != nil {
		sqlStatus := h.checkSQL(ctx)
		response.Services["sql"] = sqlStatus
		if !sqlStatus["healthy"].(bool) {
			overallHealthy = false
		}
	}

	if h.redisClient != nil {
		// alerting keeps working without redis, so it only degrades the report
		response.Services["redis"] = h.checkRedis(ctx)
	}

	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkMongoDB(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "mongodb",
		"healthy": false,
	}

	if h.db == nil {
		status["error"] = "Database client not initialized"
		return status
	}

	if err := database.Health(ctx, h.db); err != nil {
		status["error"] = err.Error()
		return status
	}

	status["healthy"] = true
	status["message"] = "Connected"
	return status
}

func (h *HealthHandler) checkSQL(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "sql",
		"healthy": false,
		"driver":  h.sqlDB.Dialector.Name(),
	}

	if err := database.SQLHealth(ctx, h.sqlDB); err != nil {
		status["error"] = err.Error()
		return status
	}

	status["healthy"] = true
	status["message"] = "Connected"
	return status
}

func (h *HealthHandler) checkRedis(ctx context.Context) map[string]interface{} {
	healthStatus := h.redisClient.HealthCheck(ctx)
	status := map[string]interface{}{
		"service":         "redis",
		"healthy":         healthStatus.IsConnected,
		"connectionInfo":  healthStatus.ConnectionInfo,
		"responseTime":    healthStatus.ResponseTime.String(),
		"lastPing":        healthStatus.LastPing,
		"connectionStats": h.redisClient.GetConnectionStats(),
	}
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	return status
}
