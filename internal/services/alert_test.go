package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-alerts/internal/alerting"
	"fleet-alerts/internal/models"
	"fleet-alerts/internal/repository"
	"fleet-alerts/pkg/cache"
	"fleet-alerts/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCacheManager struct {
	mock.Mock
}

func (m *MockCacheManager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	args := m.Called(ctx, key, value, ttl, tags)
	return args.Error(0)
}

func (m *MockCacheManager) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheManager) InvalidateByTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockCacheManager) GetCacheStats() cache.CacheStats {
	args := m.Called()
	return args.Get(0).(cache.CacheStats)
}

func (m *MockCacheManager) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var serviceNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*AlertService, *repository.SQLAlertRepository) {
	t.Helper()
	db, err := database.OpenSQL("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared", zap.NewNop(), &models.Alert{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseSQL(db) })

	repo := repository.NewSQLAlertRepository(db)
	svc := NewAlertService(repo, nil, zap.NewNop())
	svc.SetClock(func() time.Time { return serviceNow })
	return svc, repo
}

func insertAlert(t *testing.T, repo *repository.SQLAlertRepository, alertType models.AlertType, status models.AlertStatus, severity models.Severity) *models.Alert {
	t.Helper()
	saved, err := repo.Save(context.Background(), &models.Alert{
		AlertType:     alertType,
		Severity:      severity,
		Status:        status,
		Title:         "t",
		Message:       "m",
		ReferenceType: models.ReferencePartStock,
		ReferenceID:   1,
		CreatedAt:     serviceNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	return saved
}

func TestAlertService_Acknowledge(t *testing.T) {
	svc, repo := newTestService(t)
	alert := insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityCritical)

	got, err := svc.Acknowledge(context.Background(), alert.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
	require.NotNil(t, got.AcknowledgedBy)
	assert.Equal(t, int64(42), *got.AcknowledgedBy)
	require.NotNil(t, got.AcknowledgedAt)
	assert.True(t, got.AcknowledgedAt.Equal(serviceNow))

	// second acknowledgement by someone else changes nothing
	again, err := svc.Acknowledge(context.Background(), alert.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, again.AcknowledgedBy)
	assert.Equal(t, int64(42), *again.AcknowledgedBy)
}

func TestAlertService_AcknowledgeResolvedIsNoop(t *testing.T) {
	svc, repo := newTestService(t)
	alert := insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusResolved, models.SeverityWarning)

	got, err := svc.Acknowledge(context.Background(), alert.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
	assert.Nil(t, got.AcknowledgedBy)
}

func TestAlertService_Resolve(t *testing.T) {
	svc, repo := newTestService(t)
	alert := insertAlert(t, repo, models.AlertTypeDocument, models.AlertStatusAcknowledged, models.SeverityCritical)

	got, err := svc.Resolve(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(serviceNow))

	svc.SetClock(func() time.Time { return serviceNow.Add(time.Hour) })
	again, err := svc.Resolve(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.True(t, again.ResolvedAt.Equal(serviceNow), "resolving twice keeps the first timestamp")
}

func TestAlertService_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Acknowledge(context.Background(), 999, 1)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)

	_, err = svc.GetAlert(context.Background(), 0)
	assert.ErrorIs(t, err, repository.ErrInvalidAlertID)
}

func TestAlertService_TransitionWaitsForEngineLock(t *testing.T) {
	svc, repo := newTestService(t)
	locker := alerting.NewLocalLocker()
	svc.locker = locker
	alert := insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)

	release, err := locker.Lock(context.Background(), alerting.LockKey(models.AlertTypeStock))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = svc.Resolve(ctx, alert.ID)
	assert.ErrorIs(t, err, alerting.ErrLockNotAcquired)

	release()
	got, err := svc.Resolve(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
}

type lostLease struct{}

func (lostLease) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

func (lostLease) LockLease(context.Context, string) (func(), <-chan struct{}, error) {
	lost := make(chan struct{})
	close(lost)
	return func() {}, lost, nil
}

func TestAlertService_TransitionRefusesWriteAfterLeaseLoss(t *testing.T) {
	svc, repo := newTestService(t)
	svc.locker = lostLease{}
	alert := insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)

	_, err := svc.Resolve(context.Background(), alert.ID)
	assert.ErrorIs(t, err, alerting.ErrLeaseLost)

	got, err := svc.GetAlert(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, got.Status)
}

func TestAlertService_ListAndActive(t *testing.T) {
	svc, repo := newTestService(t)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusAcknowledged, models.SeverityWarning)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusResolved, models.SeverityWarning)

	all, err := svc.ListAlerts(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	status := models.AlertStatusAcknowledged
	acked, err := svc.ListAlerts(context.Background(), &status)
	require.NoError(t, err)
	assert.Len(t, acked, 1)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestAlertService_GetByTypeListsEveryType(t *testing.T) {
	svc, repo := newTestService(t)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusAcknowledged, models.SeverityWarning)
	insertAlert(t, repo, models.AlertTypeDocument, models.AlertStatusResolved, models.SeverityWarning)

	counts, err := svc.GetByType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TypeCount{
		{Type: models.AlertTypeDocument, Count: 0},
		{Type: models.AlertTypeStock, Count: 2},
		{Type: models.AlertTypeMaintenance, Count: 0},
	}, counts)
}

func TestAlertService_GetStatsUsesCache(t *testing.T) {
	svc, repo := newTestService(t)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityCritical)

	mockCache := new(MockCacheManager)
	svc.SetCacheManager(mockCache)

	mockCache.On("Get", mock.Anything, alertStatsCacheKey, mock.Anything).Return(false, nil).Once()
	mockCache.On("Set", mock.Anything, alertStatsCacheKey, mock.Anything, cache.DefaultCacheConfig().StatsTTL, []string{alertsCacheTag}).Return(nil).Once()

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AlertStats{Active: 1, Critical: 1, Total: 1}, *stats)

	mockCache.On("Get", mock.Anything, alertStatsCacheKey, mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*models.AlertStats)
			*dest = models.AlertStats{Active: 9, Total: 9}
		}).
		Return(true, nil).Once()

	cached, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, cached.Active)

	mockCache.AssertExpectations(t)
}

func TestAlertService_CacheFailureFallsBackToStore(t *testing.T) {
	svc, repo := newTestService(t)
	insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)

	mockCache := new(MockCacheManager)
	svc.SetCacheManager(mockCache)
	mockCache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Active)
}

func TestAlertService_TransitionInvalidatesCache(t *testing.T) {
	svc, repo := newTestService(t)
	alert := insertAlert(t, repo, models.AlertTypeStock, models.AlertStatusActive, models.SeverityWarning)

	mockCache := new(MockCacheManager)
	svc.SetCacheManager(mockCache)
	mockCache.On("InvalidateByTag", mock.Anything, alertsCacheTag).Return(nil).Once()

	_, err := svc.Acknowledge(context.Background(), alert.ID, 1)
	require.NoError(t, err)

	// no-op acknowledgement leaves the cache alone
	_, err = svc.Acknowledge(context.Background(), alert.ID, 1)
	require.NoError(t, err)

	mockCache.AssertExpectations(t)
	mockCache.AssertNumberOfCalls(t, "InvalidateByTag", 1)
}
