package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
)

// Appointment maps to the appointment table. Patients and doctors are
// referenced by identity document rather than row ID, so appointments remain
// meaningful even when the patient record is removed.
type Appointment struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	TenantID              uuid.UUID      `db:"tenant_id" json:"-"`
	StartUTC              time.Time      `db:"start_utc" json:"start_utc"`
	EndUTC                time.Time      `db:"end_utc" json:"end_utc"`
	PatientDocumentTypeID int            `db:"patient_document_type_id" json:"patient_document_type_id"`
	PatientDocumentNumber string         `db:"patient_document_number" json:"patient_document_number"`
	DoctorDocumentTypeID  int            `db:"doctor_document_type_id" json:"doctor_document_type_id"`
	DoctorDocumentNumber  string         `db:"doctor_document_number" json:"doctor_document_number"`
	Modality              string         `db:"modality" json:"modality"`
	State                 string         `db:"state" json:"state"`
	NotificationState     *string        `db:"notification_state" json:"notification_state,omitempty"`
	AppointmentType       *string        `db:"appointment_type" json:"appointment_type,omitempty"`
	ClinicID              *uuid.UUID     `db:"clinic_id" json:"clinic_id,omitempty"`
	Comment               *string        `db:"comment" json:"comment,omitempty"`
	CustomFields          map[string]any `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

var validModalities = map[string]bool{
	"in_person": true, "virtual": true, "phone": true,
}

var validStates = map[string]bool{
	"scheduled": true, "confirmed": true, "cancelled": true,
	"completed": true, "no_show": true,
}

// blockingStates are the states that occupy the doctor's time. Cancelled and
// missed appointments free their interval.
var blockingStates = map[string]bool{
	"scheduled": true, "confirmed": true, "completed": true,
}

// Blocking reports whether the appointment occupies its interval.
func (a *Appointment) Blocking() bool { return blockingStates[a.State] }

// Validate checks the fields a client controls. Zero times, inverted
// intervals, and unknown enum values are rejected before any conflict check
// runs.
func (a *Appointment) Validate() error {
	if a.StartUTC.IsZero() {
		return apperr.Validation("start_utc", "is required")
	}
	if a.EndUTC.IsZero() {
		return apperr.Validation("end_utc", "is required")
	}
	if !a.StartUTC.Before(a.EndUTC) {
		return apperr.Validation("end_utc", "must be after start_utc")
	}
	if a.PatientDocumentNumber == "" {
		return apperr.Validation("patient_document_number", "is required")
	}
	if a.PatientDocumentTypeID <= 0 {
		return apperr.Validation("patient_document_type_id", "is required")
	}
	if a.DoctorDocumentNumber == "" {
		return apperr.Validation("doctor_document_number", "is required")
	}
	if a.DoctorDocumentTypeID <= 0 {
		return apperr.Validation("doctor_document_type_id", "is required")
	}
	if a.Modality == "" {
		a.Modality = "in_person"
	}
	if !validModalities[a.Modality] {
		return apperr.Validation("modality", "must be one of in_person, virtual, phone")
	}
	if a.State == "" {
		a.State = "scheduled"
	}
	if !validStates[a.State] {
		return apperr.Validation("state", "unknown state "+a.State)
	}
	return nil
}

// TimeRange is a half-open [Start, End) interval in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap: a booking ending at 10:30 leaves 10:30 free.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// SearchParams narrows an appointment search. Zero values mean "any".
type SearchParams struct {
	From                  *time.Time
	To                    *time.Time
	State                 string
	Modality              string
	PatientDocumentTypeID int
	PatientDocumentNumber string
	DoctorDocumentTypeID  int
	DoctorDocumentNumber  string
}
