package models

import (
	"fmt"
	"time"
)

// AlertType identifies which evaluator produced an alert.
type AlertType string

const (
	AlertTypeDocument    AlertType = "DOCUMENT"
	AlertTypeStock       AlertType = "STOCK"
	AlertTypeMaintenance AlertType = "MAINTENANCE"
)

// AlertTypes lists every alert type in display order.
var AlertTypes = []AlertType{AlertTypeDocument, AlertTypeStock, AlertTypeMaintenance}

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeDocument, AlertTypeStock, AlertTypeMaintenance:
		return true
	}
	return false
}

func ParseAlertType(s string) (AlertType, error) {
	t := AlertType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown alert type %q", s)
	}
	return t, nil
}

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) IsCritical() bool {
	return s == SeverityCritical
}

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	}
	return false
}

func ParseAlertStatus(s string) (AlertStatus, error) {
	status := AlertStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown alert status %q", s)
	}
	return status, nil
}

// Reference types written by the evaluators.
const (
	ReferenceTruckDocument  = "camion_document"
	ReferenceDriverDocument = "chauffeur_document"
	ReferencePartStock      = "piece_stock"
	ReferenceMaintenance    = "maintenance"
)

type Alert struct {
	ID             int64       `bson:"_id" json:"id" gorm:"primaryKey;autoIncrement"`
	AlertType      AlertType   `bson:"alert_type" json:"alertType" gorm:"column:alert_type;size:20;not null;index:idx_alerts_type_status"`
	Severity       Severity    `bson:"severity" json:"severity" gorm:"size:20;not null"`
	Status         AlertStatus `bson:"status" json:"status" gorm:"size:20;not null;index:idx_alerts_type_status"`
	Title          string      `bson:"title" json:"title" gorm:"size:255;not null"`
	Message        string      `bson:"message" json:"message" gorm:"type:text"`
	ReferenceType  string      `bson:"reference_type" json:"referenceType" gorm:"size:50;not null;index:idx_alerts_reference"`
	ReferenceID    int64       `bson:"reference_id" json:"referenceId" gorm:"not null;index:idx_alerts_reference"`
	VehicleRef     *int64      `bson:"vehicle_ref,omitempty" json:"vehicleRef,omitempty"`
	AcknowledgedBy *int64      `bson:"acknowledged_by,omitempty" json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time  `bson:"acknowledged_at,omitempty" json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time  `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty" gorm:"index"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

func (Alert) TableName() string {
	return "alerts"
}

// IsOpen reports whether the alert still takes part in reconciliation.
func (a *Alert) IsOpen() bool {
	return a.Status != AlertStatusResolved
}

// AlertFilter narrows alert listings. Zero value matches everything.
type AlertFilter struct {
	Status   *AlertStatus
	Type     *AlertType
	OpenOnly bool
}

type AlertStats struct {
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	Critical     int `json:"critical"`
	Total        int `json:"total"`
}

type TypeCount struct {
	Type  AlertType `json:"type"`
	Count int       `json:"count"`
}
