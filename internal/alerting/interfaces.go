package alerting

import (
	"context"
	"time"

	"fleet-alerts/internal/models"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// In returns a clock reporting c's instants in loc, so day boundaries follow
// loc instead of the host zone.
func (c Clock) In(loc *time.Location) Clock {
	if loc == nil {
		return c
	}
	return func() time.Time { return c().In(loc) }
}

// AlertStore persists alerts. Save inserts when ID is zero and replaces otherwise.
type AlertStore interface {
	FindOpenByType(ctx context.Context, alertType models.AlertType) ([]*models.Alert, error)
	Save(ctx context.Context, alert *models.Alert) (*models.Alert, error)
}

// PurgeStore removes resolved alerts past retention.
type PurgeStore interface {
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}

type TruckSource interface {
	FindActive(ctx context.Context) ([]*models.Truck, error)
}

type DriverSource interface {
	FindActive(ctx context.Context) ([]*models.Driver, error)
}

type PartSource interface {
	FindActive(ctx context.Context) ([]*models.Part, error)
}

type StockSource interface {
	FindByParts(ctx context.Context, partIDs []int64) ([]*models.StockEntry, error)
}

// MaintenanceSource reads maintenances still in the planned status.
type MaintenanceSource interface {
	FindPlannedBetween(ctx context.Context, from, to time.Time) ([]*models.Maintenance, error)
	FindPlannedUntil(ctx context.Context, until time.Time) ([]*models.Maintenance, error)
}

type UserDirectory interface {
	FindActiveByRoles(ctx context.Context, roles []models.Role) ([]*models.User, error)
}

// Mailer is the outbound mail transport. Send is best effort and never panics.
type Mailer interface {
	IsConfigured() bool
	Send(ctx context.Context, recipients []string, subject, body string) bool
}

// Locker serializes reconciliation passes sharing a key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LeaseLocker is a Locker whose locks can expire while held. The returned
// channel is closed once the holder no longer owns the key.
type LeaseLocker interface {
	Locker
	LockLease(ctx context.Context, key string) (func(), <-chan struct{}, error)
}

// StatsInvalidator drops cached alert aggregates after alerts change.
type StatsInvalidator interface {
	InvalidateAlertStats(ctx context.Context)
}

// Recorder receives per-pass measurements.
type Recorder interface {
	ObservePass(result RunResult, duration time.Duration)
	PassFailed(alertType models.AlertType)
	Notification(alertType models.AlertType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePass(RunResult, time.Duration) {}
func (nopRecorder) PassFailed(models.AlertType) {}
func (nopRecorder) Notification(models.AlertType, string) {}
