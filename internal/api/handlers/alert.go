package handlers

import (
	"context"
	"errors"
	"net/http"

	"fleet-alerts/internal/alerting"
	"fleet-alerts/internal/api/middleware"
	"fleet-alerts/internal/models"
	"fleet-alerts/internal/repository"
	"fleet-alerts/internal/services"
	"fleet-alerts/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CheckRunner runs reconciliation passes on demand.
type CheckRunner interface {
	Run(ctx context.Context, t models.AlertType) (alerting.RunResult, error)
	RunAll(ctx context.Context) (map[models.AlertType]alerting.RunResult, error)
}

type AlertHandler struct {
	alertService *services.AlertService
	checks       CheckRunner
	validator    *validator.Validate
	logger       *zap.Logger
}

type listAlertsQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=ACTIVE ACKNOWLEDGED RESOLVED"`
}

type alertURI struct {
	ID int64 `uri:"id" validate:"required,min=1"`
}

type checkResponse struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Resolved int                `json:"resolved"`
	Findings []alerting.Finding `json:"findings"`
}

type maintenanceCheckResponse struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Resolved int                `json:"resolved"`
	Upcoming []alerting.Finding `json:"upcoming"`
	Overdue  []alerting.Finding `json:"overdue"`
}

func NewAlertHandler(alertService *services.AlertService, checks CheckRunner, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{
		alertService: alertService,
		checks:       checks,
		validator:    validator.New(),
		logger:       logger.With(zap.String("component", "alert-handler")),
	}
}

// GetAlerts lists alerts, optionally filtered by status
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	var query listAlertsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	if err := h.validator.Struct(query); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	var status *models.AlertStatus
	if query.Status != "" {
		s := models.AlertStatus(query.Status)
		status = &s
	}

	alerts, err := h.alertService.ListAlerts(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alerts retrieved successfully", alerts)
}

// GetActiveAlerts lists ACTIVE and ACKNOWLEDGED alerts
func (h *AlertHandler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.alertService.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list active alerts", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve active alerts", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Active alerts retrieved successfully", alerts)
}

func (h *AlertHandler) GetStats(c *gin.Context) {
	stats, err := h.alertService.GetStats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute alert stats", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve alert statistics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert statistics retrieved successfully", stats)
}

func (h *AlertHandler) GetByType(c *gin.Context) {
	counts, err := h.alertService.GetByType(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to count alerts by type", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve alert counts", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert counts retrieved successfully", counts)
}

// GetAlert retrieves a specific alert by ID
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, ok := h.bindAlertID(c)
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.alertError(c, "Failed to retrieve alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert retrieved successfully", alert)
}

// AcknowledgeAlert stamps the alert with the authenticated user
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	id, ok := h.bindAlertID(c)
	if !ok {
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	alert, err := h.alertService.Acknowledge(c.Request.Context(), id, userID)
	if err != nil {
		h.alertError(c, "Failed to acknowledge alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert acknowledged successfully", alert)
}

func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, ok := h.bindAlertID(c)
	if !ok {
		return
	}

	alert, err := h.alertService.Resolve(c.Request.Context(), id)
	if err != nil {
		h.alertError(c, "Failed to resolve alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert resolved successfully", alert)
}

func (h *AlertHandler) RunDocumentCheck(c *gin.Context) {
	h.runCheck(c, models.AlertTypeDocument)
}

func (h *AlertHandler) RunStockCheck(c *gin.Context) {
	h.runCheck(c, models.AlertTypeStock)
}

func (h *AlertHandler) RunMaintenanceCheck(c *gin.Context) {
	h.runCheck(c, models.AlertTypeMaintenance)
}

// RunAllChecks runs every evaluator. Results of the passes that succeeded are
// returned even when another type failed.
func (h *AlertHandler) RunAllChecks(c *gin.Context) {
	// a dropped connection must not abort a pass halfway
	ctx := context.WithoutCancel(c.Request.Context())

	results, err := h.checks.RunAll(ctx)
	data := make(map[models.AlertType]interface{}, len(results))
	for t, result := range results {
		data[t] = newCheckResponse(result)
	}

	if err != nil {
		h.logger.Error("manual check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "One or more alert checks failed",
			Data:    data,
			Error:   err.Error(),
		})
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert checks completed", data)
}

func (h *AlertHandler) runCheck(c *gin.Context, t models.AlertType) {
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.checks.Run(ctx, t)
	if err != nil {
		h.logger.Error("manual check failed", zap.String("alert_type", string(t)), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, alerting.ErrLockNotAcquired) || errors.Is(err, alerting.ErrLeaseLost) {
			status = http.StatusConflict
		}
		utils.ErrorResponse(c, status, "Alert check failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert check completed", newCheckResponse(result))
}

func newCheckResponse(result alerting.RunResult) interface{} {
	if result.Type == models.AlertTypeMaintenance {
		return maintenanceCheckResponse{
			Created:  result.Created,
			Updated:  result.Updated,
			Resolved: result.Resolved,
			Upcoming: nonNil(result.Upcoming),
			Overdue:  nonNil(result.Overdue),
		}
	}
	return checkResponse{
		Created:  result.Created,
		Updated:  result.Updated,
		Resolved: result.Resolved,
		Findings: nonNil(result.Findings),
	}
}

func nonNil(findings []alerting.Finding) []alerting.Finding {
	if findings == nil {
		return []alerting.Finding{}
	}
	return findings
}

func (h *AlertHandler) bindAlertID(c *gin.Context) (int64, bool) {
	var uri alertURI
	if err := c.ShouldBindUri(&uri); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid alert ID", err)
		return 0, false
	}
	if err := h.validator.Struct(uri); err != nil {
		utils.ValidationErrorResponse(c, err)
		return 0, false
	}
	return uri.ID, true
}

func (h *AlertHandler) alertError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, repository.ErrAlertNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Alert not found", err)
	case errors.Is(err, repository.ErrInvalidAlertID):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid alert ID", err)
	case errors.Is(err, alerting.ErrLockNotAcquired), errors.Is(err, alerting.ErrLeaseLost):
		utils.ErrorResponse(c, http.StatusConflict, "Alert is being updated, retry shortly", err)
	default:
		h.logger.Error(message, zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
