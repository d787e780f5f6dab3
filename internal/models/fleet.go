package models

import (
	"fmt"
	"strings"
	"time"
)

// Truck is the subset of a fleet vehicle record the document check reads.
type Truck struct {
	ID                           int64      `bson:"_id" json:"id"`
	Registration                 string     `bson:"registration" json:"registration"`
	Brand                        string     `bson:"brand" json:"brand"`
	Model                        string     `bson:"model" json:"model"`
	InsuranceExpiresAt           *time.Time `bson:"insurance_expires_at,omitempty" json:"insuranceExpiresAt,omitempty"`
	TechnicalInspectionExpiresAt *time.Time `bson:"technical_inspection_expires_at,omitempty" json:"technicalInspectionExpiresAt,omitempty"`
	LicenseExpiresAt             *time.Time `bson:"license_expires_at,omitempty" json:"licenseExpiresAt,omitempty"`
	NextRevisionAt               *time.Time `bson:"next_revision_at,omitempty" json:"nextRevisionAt,omitempty"`
	Active                       bool       `bson:"active" json:"active"`
}

func (t Truck) Label() string {
	if t.Registration != "" {
		return t.Registration
	}
	return fmt.Sprintf("camion #%d", t.ID)
}

type Driver struct {
	ID               int64      `bson:"_id" json:"id"`
	FirstName        string     `bson:"first_name" json:"firstName"`
	LastName         string     `bson:"last_name" json:"lastName"`
	LicenseNumber    string     `bson:"license_number" json:"licenseNumber"`
	LicenseExpiresAt *time.Time `bson:"license_expires_at,omitempty" json:"licenseExpiresAt,omitempty"`
	Active           bool       `bson:"active" json:"active"`
}

func (d Driver) Label() string {
	name := strings.TrimSpace(d.FirstName + " " + d.LastName)
	if name != "" {
		return name
	}
	return fmt.Sprintf("chauffeur #%d", d.ID)
}
