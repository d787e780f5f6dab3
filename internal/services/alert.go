package services

import (
	"context"
	"fmt"
	"time"

	"fleet-alerts/internal/alerting"
	"fleet-alerts/internal/models"
	"fleet-alerts/pkg/cache"

	"go.uber.org/zap"
)

const (
	alertsCacheTag     = "alerts"
	alertStatsCacheKey = "alerts:stats"
	alertTypesCacheKey = "alerts:by-type"
)

// AlertRepository is the alert store behind the service. Both the Mongo and
// the SQL repositories satisfy it.
type AlertRepository interface {
	alerting.AlertStore
	Find(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error)
	FindByID(ctx context.Context, id int64) (*models.Alert, error)
	Stats(ctx context.Context) (*models.AlertStats, error)
	CountOpenByType(ctx context.Context) (map[models.AlertType]int, error)
}

type AlertService struct {
	alertRepo    AlertRepository
	locker       alerting.Locker
	clock        alerting.Clock
	logger       *zap.Logger
	cacheManager cache.CacheManager
	cacheConfig  cache.CacheConfig
}

// NewAlertService builds the read and acknowledgement surface over alerts.
// locker must be the one the engine uses so manual changes never interleave
// with a reconciliation pass of the same type.
func NewAlertService(alertRepo AlertRepository, locker alerting.Locker, logger *zap.Logger) *AlertService {
	if locker == nil {
		locker = alerting.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		alertRepo:   alertRepo,
		locker:      locker,
		clock:       time.Now,
		logger:      logger.With(zap.String("component", "alert-service")),
		cacheConfig: cache.DefaultCacheConfig(),
	}
}

// SetCacheManager enables caching of the aggregate endpoints.
func (s *AlertService) SetCacheManager(cacheManager cache.CacheManager) {
	s.cacheManager = cacheManager
}

func (s *AlertService) SetCacheConfig(config cache.CacheConfig) {
	s.cacheConfig = config
}

func (s *AlertService) SetClock(clock alerting.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *AlertService) ListAlerts(ctx context.Context, status *models.AlertStatus) ([]*models.Alert, error) {
	return s.alertRepo.Find(ctx, models.AlertFilter{Status: status})
}

// ListActive returns ACTIVE and ACKNOWLEDGED alerts, newest first.
func (s *AlertService) ListActive(ctx context.Context) ([]*models.Alert, error) {
	return s.alertRepo.Find(ctx, models.AlertFilter{OpenOnly: true})
}

func (s *AlertService) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	return s.alertRepo.FindByID(ctx, id)
}

func (s *AlertService) GetStats(ctx context.Context) (*models.AlertStats, error) {
	var cached models.AlertStats
	if s.readCache(ctx, alertStatsCacheKey, &cached) {
		return &cached, nil
	}

	stats, err := s.alertRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, alertStatsCacheKey, stats)
	return stats, nil
}

// GetByType counts open alerts per type. Every type is listed, zero included.
func (s *AlertService) GetByType(ctx context.Context) ([]models.TypeCount, error) {
	var cached []models.TypeCount
	if s.readCache(ctx, alertTypesCacheKey, &cached) {
		return cached, nil
	}

	counts, err := s.alertRepo.CountOpenByType(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.TypeCount, 0, len(models.AlertTypes))
	for _, t := range models.AlertTypes {
		result = append(result, models.TypeCount{Type: t, Count: counts[t]})
	}

	s.writeCache(ctx, alertTypesCacheKey, result)
	return result, nil
}

// Acknowledge marks an ACTIVE alert as seen by userID. Acknowledged and
// resolved alerts are returned unchanged.
func (s *AlertService) Acknowledge(ctx context.Context, id, userID int64) (*models.Alert, error) {
	return s.transition(ctx, id, func(alert *models.Alert, now time.Time) bool {
		if alert.Status != models.AlertStatusActive {
			return false
		}
		alert.Status = models.AlertStatusAcknowledged
		alert.AcknowledgedBy = &userID
		alert.AcknowledgedAt = &now
		return true
	})
}

// Resolve closes an open alert. Resolved alerts are returned unchanged.
func (s *AlertService) Resolve(ctx context.Context, id int64) (*models.Alert, error) {
	return s.transition(ctx, id, func(alert *models.Alert, now time.Time) bool {
		if alert.Status == models.AlertStatusResolved {
			return false
		}
		alert.Status = models.AlertStatusResolved
		alert.ResolvedAt = &now
		return true
	})
}

func (s *AlertService) transition(ctx context.Context, id int64, apply func(*models.Alert, time.Time) bool) (*models.Alert, error) {
	alert, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertStatusResolved {
		return alert, nil
	}

	release, lost, err := alerting.Acquire(ctx, s.locker, alerting.LockKey(alert.AlertType))
	if err != nil {
		return nil, fmt.Errorf("lock %s alerts: %w", alert.AlertType, err)
	}
	defer release()

	// a pass may have changed the alert while we waited for the lock
	alert, err = s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apply(alert, s.clock()) {
		return alert, nil
	}

	select {
	case <-lost:
		return nil, fmt.Errorf("%w: %s", alerting.ErrLeaseLost, alerting.LockKey(alert.AlertType))
	default:
	}
	saved, err := s.alertRepo.Save(ctx, alert)
	if err != nil {
		return nil, err
	}

	s.InvalidateAlertStats(ctx)
	s.logger.Info("alert status changed",
		zap.Int64("alert_id", saved.ID),
		zap.String("alert_type", string(saved.AlertType)),
		zap.String("status", string(saved.Status)),
	)
	return saved, nil
}

// InvalidateAlertStats drops the cached aggregates. Cache errors are logged only.
func (s *AlertService) InvalidateAlertStats(ctx context.Context) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateByTag(ctx, alertsCacheTag); err != nil {
		s.logger.Warn("failed to invalidate alert cache", zap.Error(err))
	}
}

func (s *AlertService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cacheManager == nil {
		return false
	}
	hit, err := s.cacheManager.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *AlertService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.Set(ctx, key, value, s.cacheConfig.StatsTTL, alertsCacheTag); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
