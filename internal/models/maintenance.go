package models

import (
	"time"
)

// Maintenance is a scheduled intervention on a truck.
type Maintenance struct {
	ID                int64      `bson:"_id" json:"id"`
	TruckID           int64      `bson:"truck_id" json:"truckId"`
	TruckRegistration string     `bson:"truck_registration" json:"truckRegistration"`
	Type              string     `bson:"type" json:"type"`
	Description       string     `bson:"description" json:"description"`
	DatePlanned       time.Time  `bson:"date_planned" json:"datePlanned"`
	DateExecuted      *time.Time `bson:"date_executed,omitempty" json:"dateExecuted,omitempty"`
	Status            string     `bson:"status" json:"status"`
}

// Constants for maintenance status
const (
	MaintenanceStatusPlanned    = "PLANIFIE"
	MaintenanceStatusInProgress = "EN_COURS"
	MaintenanceStatusCompleted  = "TERMINE"
	MaintenanceStatusCancelled  = "ANNULE"
)

// Constants for maintenance types
const (
	MaintenanceTypeOilChange  = "vidange"
	MaintenanceTypeTires      = "pneumatiques"
	MaintenanceTypeBrakes     = "freinage"
	MaintenanceTypeInspection = "controle"
	MaintenanceTypeRevision   = "revision"
	MaintenanceTypeRepair     = "reparation"
	MaintenanceTypeOther      = "autre"
)

var maintenanceTypeLabels = map[string]string{
	MaintenanceTypeOilChange:  "Vidange",
	MaintenanceTypeTires:      "Pneumatiques",
	MaintenanceTypeBrakes:     "Freinage",
	MaintenanceTypeInspection: "Contrôle",
	MaintenanceTypeRevision:   "Révision",
	MaintenanceTypeRepair:     "Réparation",
	MaintenanceTypeOther:      "Autre",
}

// TypeLabel returns the display label of the maintenance type, falling back to the raw value.
func (m Maintenance) TypeLabel() string {
	if label, ok := maintenanceTypeLabels[m.Type]; ok {
		return label
	}
	if m.Type == "" {
		return "Maintenance"
	}
	return m.Type
}

func (m Maintenance) VehicleLabel() string {
	if m.TruckRegistration != "" {
		return m.TruckRegistration
	}
	return "camion inconnu"
}
