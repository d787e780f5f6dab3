package alerting

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"fleet-alerts/internal/models"
)

var (
	ErrUnknownAlertType = errors.New("unknown alert type")
	ErrLockNotAcquired  = errors.New("reconciliation lock not acquired")
	ErrLeaseLost        = errors.New("reconciliation lock lost while held")
)

// Finding is one entity currently violating a threshold. It is never persisted.
//
// Urgency is normalized so that smaller means more urgent: days until expiry
// for documents, quantity on hand for stock, days until the planned date for
// maintenance.
type Finding struct {
	ReferenceType string    `json:"referenceType"`
	ReferenceID   int64     `json:"referenceId"`
	VehicleRef    *int64    `json:"vehicleRef,omitempty"`
	Label         string    `json:"label"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Urgency       int       `json:"urgency"`
	OccursAt      time.Time `json:"occursAt"`
	Overdue       bool      `json:"overdue,omitempty"`
}

// Evaluation is the output of one evaluator pass. Upcoming and Overdue are only
// filled by the maintenance evaluator.
type Evaluation struct {
	Findings []Finding `json:"findings"`
	Upcoming []Finding `json:"upcoming,omitempty"`
	Overdue  []Finding `json:"overdue,omitempty"`
}

func sortByUrgency(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Urgency < findings[j].Urgency
	})
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// CalendarDaysUntil counts whole calendar days from now's day to target's day,
// both read in now's location. Negative when target is in the past.
func CalendarDaysUntil(now, target time.Time) int {
	from := StartOfDay(now)
	to := StartOfDay(target.In(now.Location()))
	// rounding absorbs the 23h and 25h days around DST changes
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// Classify maps a finding to a severity using the rule of the alert type that produced it.
func Classify(t models.AlertType, f Finding) (models.Severity, error) {
	switch t {
	case models.AlertTypeDocument:
		switch {
		case f.Urgency <= 7:
			return models.SeverityCritical, nil
		case f.Urgency <= 15:
			return models.SeverityWarning, nil
		default:
			return models.SeverityInfo, nil
		}
	case models.AlertTypeStock:
		if f.Urgency <= 0 {
			return models.SeverityCritical, nil
		}
		return models.SeverityWarning, nil
	case models.AlertTypeMaintenance:
		switch {
		case f.Overdue:
			return models.SeverityCritical, nil
		case f.Urgency <= 1:
			return models.SeverityWarning, nil
		default:
			return models.SeverityInfo, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
}

// MatchKey builds the deduplication key of an alert or finding. Document alerts
// include the title because one truck carries several documents.
func MatchKey(t models.AlertType, referenceType string, referenceID int64, title string) (string, error) {
	base := referenceType + "#" + strconv.FormatInt(referenceID, 10)
	switch t {
	case models.AlertTypeDocument:
		return base + "#" + title, nil
	case models.AlertTypeStock, models.AlertTypeMaintenance:
		return base, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
}

// LockKey is the lock guarding reconciliation of one alert type.
func LockKey(t models.AlertType) string {
	return "alerts:reconcile:" + string(t)
}

func dayWord(n int) string {
	if n == 1 || n == -1 {
		return "jour"
	}
	return "jours"
}
