package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
)

// TimeOfDay is a wall-clock time stored as minutes since midnight. It
// marshals as "HH:MM". Windows hold times of day rather than instants so a
// weekly schedule survives DST transitions in the tenant's timezone.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// At anchors the time of day to a civil date in the given location.
func (t TimeOfDay) At(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(t)/60, int(t)%60, 0, 0, loc)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is a weekly recurring availability window for a doctor. Days run
// Monday=0 through Sunday=6.
type Window struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	TenantID             uuid.UUID `db:"tenant_id" json:"-"`
	DoctorDocumentTypeID int       `db:"doctor_document_type_id" json:"doctor_document_type_id"`
	DoctorDocumentNumber string    `db:"doctor_document_number" json:"doctor_document_number"`
	DayOfWeek            int       `db:"day_of_week" json:"day_of_week"`
	StartTime            TimeOfDay `db:"start_minute" json:"start_time"`
	EndTime              TimeOfDay `db:"end_minute" json:"end_time"`
	SlotMinutes          int       `db:"slot_minutes" json:"slot_minutes"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks client-controlled window fields.
func (w *Window) Validate() error {
	if w.DoctorDocumentNumber == "" {
		return apperr.Validation("doctor_document_number", "is required")
	}
	if w.DoctorDocumentTypeID <= 0 {
		return apperr.Validation("doctor_document_type_id", "is required")
	}
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return apperr.Validation("day_of_week", "must be between 0 and 6")
	}
	if w.StartTime >= w.EndTime {
		return apperr.Validation("end_time", "must be after start_time")
	}
	if w.SlotMinutes <= 0 {
		return apperr.Validation("slot_minutes", "must be positive")
	}
	return nil
}

// BlockedInterval is a one-off absence: vacation, sick leave, a meeting.
// Unlike windows it holds absolute instants, not times of day.
type BlockedInterval struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	TenantID             uuid.UUID `db:"tenant_id" json:"-"`
	DoctorDocumentTypeID int       `db:"doctor_document_type_id" json:"doctor_document_type_id"`
	DoctorDocumentNumber string    `db:"doctor_document_number" json:"doctor_document_number"`
	StartAt              time.Time `db:"start_at" json:"start_at"`
	EndAt                time.Time `db:"end_at" json:"end_at"`
	Reason               *string   `db:"reason" json:"reason,omitempty"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// Validate checks client-controlled blocked interval fields.
func (b *BlockedInterval) Validate() error {
	if b.DoctorDocumentNumber == "" {
		return apperr.Validation("doctor_document_number", "is required")
	}
	if b.DoctorDocumentTypeID <= 0 {
		return apperr.Validation("doctor_document_type_id", "is required")
	}
	if b.StartAt.IsZero() {
		return apperr.Validation("start_at", "is required")
	}
	if b.EndAt.IsZero() {
		return apperr.Validation("end_at", "is required")
	}
	if !b.StartAt.Before(b.EndAt) {
		return apperr.Validation("end_at", "must be after start_at")
	}
	return nil
}

// Slot is one bookable interval in a doctor's day. Slots overlapping a
// booking or blocked interval are returned with Available=false rather than
// omitted, so clients can render the full grid.
type Slot struct {
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

// civilDayOfWeek maps time.Weekday (Sunday=0) to the Monday=0 convention
// windows are stored in.
func civilDayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
