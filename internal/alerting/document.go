package alerting

import (
	"context"
	"fmt"
	"time"

	"fleet-alerts/internal/models"
)

const DefaultDocumentHorizonDays = 30

type truckDocument struct {
	label   string
	expires func(t *models.Truck) *time.Time
}

var truckDocuments = []truckDocument{
	{"Assurance", func(t *models.Truck) *time.Time { return t.InsuranceExpiresAt }},
	{"Visite technique", func(t *models.Truck) *time.Time { return t.TechnicalInspectionExpiresAt }},
	{"Licence", func(t *models.Truck) *time.Time { return t.LicenseExpiresAt }},
	{"Révision", func(t *models.Truck) *time.Time { return t.NextRevisionAt }},
}

const driverLicenseLabel = "Permis de conduire"

// DocumentEvaluator reports truck and driver documents expiring within the horizon.
type DocumentEvaluator struct {
	trucks      TruckSource
	drivers     DriverSource
	clock       Clock
	horizonDays int
}

func NewDocumentEvaluator(trucks TruckSource, drivers DriverSource, clock Clock, horizonDays int) *DocumentEvaluator {
	if horizonDays <= 0 {
		horizonDays = DefaultDocumentHorizonDays
	}
	if clock == nil {
		clock = time.Now
	}
	return &DocumentEvaluator{
		trucks:      trucks,
		drivers:     drivers,
		clock:       clock,
		horizonDays: horizonDays,
	}
}

func (e *DocumentEvaluator) Type() models.AlertType {
	return models.AlertTypeDocument
}

func (e *DocumentEvaluator) Evaluate(ctx context.Context) (Evaluation, error) {
	now := e.clock()

	trucks, err := e.trucks.FindActive(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load active trucks: %w", err)
	}
	drivers, err := e.drivers.FindActive(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load active drivers: %w", err)
	}

	var findings []Finding
	for _, truck := range trucks {
		truckID := truck.ID
		for _, doc := range truckDocuments {
			expires := doc.expires(truck)
			if expires == nil {
				continue
			}
			if f, ok := e.finding(now, models.ReferenceTruckDocument, truck.ID, &truckID, doc.label, truck.Label(), *expires); ok {
				findings = append(findings, f)
			}
		}
	}

	for _, driver := range drivers {
		if driver.LicenseExpiresAt == nil {
			continue
		}
		if f, ok := e.finding(now, models.ReferenceDriverDocument, driver.ID, nil, driverLicenseLabel, driver.Label(), *driver.LicenseExpiresAt); ok {
			findings = append(findings, f)
		}
	}

	sortByUrgency(findings)
	return Evaluation{Findings: findings}, nil
}

func (e *DocumentEvaluator) finding(now time.Time, refType string, refID int64, vehicle *int64, docLabel, entityLabel string, expires time.Time) (Finding, bool) {
	days := CalendarDaysUntil(now, expires)
	if days > e.horizonDays {
		return Finding{}, false
	}

	title := fmt.Sprintf("%s - %s", docLabel, entityLabel)
	return Finding{
		ReferenceType: refType,
		ReferenceID:   refID,
		VehicleRef:    vehicle,
		Label:         entityLabel,
		Title:         title,
		Message:       documentMessage(docLabel, entityLabel, days),
		Urgency:       days,
		OccursAt:      expires,
	}, true
}

func documentMessage(docLabel, entityLabel string, days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%s de %s EXPIRÉ depuis %d %s", docLabel, entityLabel, -days, dayWord(days))
	case days == 0:
		return fmt.Sprintf("%s de %s expire AUJOURD'HUI", docLabel, entityLabel)
	default:
		return fmt.Sprintf("%s de %s expire dans %d %s", docLabel, entityLabel, days, dayWord(days))
	}
}
