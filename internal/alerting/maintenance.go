package alerting

import (
	"context"
	"fmt"
	"time"

	"fleet-alerts/internal/models"
)

const DefaultMaintenanceHorizonDays = 7

// MaintenanceEvaluator reports planned maintenances that are overdue or due
// within the horizon. Overdue takes precedence: a maintenance appears in at
// most one of the two sets.
type MaintenanceEvaluator struct {
	maintenances MaintenanceSource
	clock        Clock
	horizonDays  int
}

func NewMaintenanceEvaluator(maintenances MaintenanceSource, clock Clock, horizonDays int) *MaintenanceEvaluator {
	if horizonDays <= 0 {
		horizonDays = DefaultMaintenanceHorizonDays
	}
	if clock == nil {
		clock = time.Now
	}
	return &MaintenanceEvaluator{
		maintenances: maintenances,
		clock:        clock,
		horizonDays:  horizonDays,
	}
}

func (e *MaintenanceEvaluator) Type() models.AlertType {
	return models.AlertTypeMaintenance
}

func (e *MaintenanceEvaluator) Evaluate(ctx context.Context) (Evaluation, error) {
	now := e.clock()
	today := StartOfDay(now)
	horizonEnd := EndOfDay(today.AddDate(0, 0, e.horizonDays))

	overdueRecords, err := e.maintenances.FindPlannedUntil(ctx, today)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load overdue maintenances: %w", err)
	}
	upcomingRecords, err := e.maintenances.FindPlannedBetween(ctx, today, horizonEnd)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load upcoming maintenances: %w", err)
	}

	seen := make(map[int64]bool, len(overdueRecords))
	var overdue []Finding
	for _, m := range overdueRecords {
		if m.Status != models.MaintenanceStatusPlanned || m.DatePlanned.After(today) || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		overdue = append(overdue, maintenanceFinding(now, m, true))
	}

	var upcoming []Finding
	for _, m := range upcomingRecords {
		if m.Status != models.MaintenanceStatusPlanned || seen[m.ID] {
			continue
		}
		if m.DatePlanned.Before(today) || m.DatePlanned.After(horizonEnd) {
			continue
		}
		seen[m.ID] = true
		upcoming = append(upcoming, maintenanceFinding(now, m, false))
	}

	sortByUrgency(overdue)
	sortByUrgency(upcoming)

	findings := make([]Finding, 0, len(overdue)+len(upcoming))
	findings = append(findings, overdue...)
	findings = append(findings, upcoming...)
	sortByUrgency(findings)

	return Evaluation{Findings: findings, Upcoming: upcoming, Overdue: overdue}, nil
}

func maintenanceFinding(now time.Time, m *models.Maintenance, overdue bool) Finding {
	days := CalendarDaysUntil(now, m.DatePlanned)
	truckID := m.TruckID
	f := Finding{
		ReferenceType: models.ReferenceMaintenance,
		ReferenceID:   m.ID,
		Label:         m.VehicleLabel(),
		Title:         fmt.Sprintf("Maintenance - %s %s", m.TypeLabel(), m.VehicleLabel()),
		Message:       maintenanceMessage(m, days, overdue),
		Urgency:       days,
		OccursAt:      m.DatePlanned,
		Overdue:       overdue,
	}
	if truckID != 0 {
		f.VehicleRef = &truckID
	}
	return f
}

func maintenanceMessage(m *models.Maintenance, days int, overdue bool) string {
	what := fmt.Sprintf("%s - %s", m.TypeLabel(), m.VehicleLabel())
	planned := m.DatePlanned.Format("02/01/2006")

	switch {
	case overdue && days < 0:
		return fmt.Sprintf("MAINTENANCE EN RETARD: %s prévue le %s (%d %s de retard)", what, planned, -days, dayWord(days))
	case overdue:
		return fmt.Sprintf("MAINTENANCE EN RETARD: %s prévue aujourd'hui (%s)", what, planned)
	case days <= 0:
		return fmt.Sprintf("Maintenance AUJOURD'HUI: %s", what)
	case days == 1:
		return fmt.Sprintf("Maintenance DEMAIN: %s (%s)", what, planned)
	default:
		return fmt.Sprintf("Maintenance dans %d jours: %s (%s)", days, what, planned)
	}
}

// dueSoon reports whether a maintenance finding belongs in the digest snapshot.
func dueSoon(f Finding) bool {
	return f.Overdue || f.Urgency <= 1
}
