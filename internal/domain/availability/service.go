package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/domain/appointment"
	"github.com/secreapi/secre/internal/platform/apperr"
)

// Service owns doctor schedules: weekly windows, blocked intervals, and the
// derived time-slot view. All instants are computed in loc, the tenant's
// operating timezone.
type Service struct {
	windows WindowRepository
	blocked BlockedRepository
	busy    BusySource
	loc     *time.Location
}

// NewService creates the availability service.
func NewService(windows WindowRepository, blocked BlockedRepository, busy BusySource, loc *time.Location) *Service {
	return &Service{windows: windows, blocked: blocked, busy: busy, loc: loc}
}

// -- Windows --

func (s *Service) CreateWindow(ctx context.Context, w *Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	return s.windows.Create(ctx, w)
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	return s.windows.GetByID(ctx, id)
}

func (s *Service) UpdateWindow(ctx context.Context, w *Window) error {
	if w.ID == uuid.Nil {
		return apperr.Validation("id", "is required")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	return s.windows.Update(ctx, w)
}

// DeactivateWindow keeps the row but stops it producing slots.
func (s *Service) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	w, err := s.windows.GetByID(ctx, id)
	if err != nil {
		return err
	}
	w.Active = false
	return s.windows.Update(ctx, w)
}

func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	return s.windows.Delete(ctx, id)
}

func (s *Service) ListWindows(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*Window, int, error) {
	return s.windows.ListByDoctor(ctx, docType, docNumber, limit, offset)
}

// -- Blocked intervals --

func (s *Service) CreateBlocked(ctx context.Context, b *BlockedInterval) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Active = true
	return s.blocked.Create(ctx, b)
}

func (s *Service) DeleteBlocked(ctx context.Context, id uuid.UUID) error {
	return s.blocked.Delete(ctx, id)
}

func (s *Service) ListBlocked(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*BlockedInterval, int, error) {
	return s.blocked.ListByDoctor(ctx, docType, docNumber, limit, offset)
}

// -- Slots --

// GetTimeSlots returns the computed slot grid for a doctor on one civil
// date ("2006-01-02" in the tenant timezone). A doctor with no windows that
// day yields an empty list, not an error.
func (s *Service) GetTimeSlots(ctx context.Context, docType int, docNumber string, date string) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, apperr.Validation("date", "must be YYYY-MM-DD")
	}

	windows, err := s.windows.ListForDay(ctx, docType, docNumber, civilDayOfWeek(day))
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	busy, err := s.busy.BusyIntervals(ctx, docType, docNumber, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	blocked, err := s.blocked.BlockedIntervals(ctx, docType, docNumber, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	slots := GenerateSlots(day, s.loc, windows, append(busy, blocked...))
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// CheckAvailability reports whether [start, end) can be booked for the
// doctor: it must fall inside an active window for that day and be free of
// bookings and blocked intervals.
func (s *Service) CheckAvailability(ctx context.Context, docType int, docNumber string, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, apperr.Validation("end", "must be after start")
	}

	localStart := start.In(s.loc)
	localEnd := end.In(s.loc)

	windows, err := s.windows.ListForDay(ctx, docType, docNumber, civilDayOfWeek(localStart))
	if err != nil {
		return false, err
	}

	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, s.loc)
	contained := false
	for _, w := range windows {
		if !w.StartTime.At(day, s.loc).After(localStart) && !localEnd.After(w.EndTime.At(day, s.loc)) {
			contained = true
			break
		}
	}
	if !contained {
		return false, nil
	}

	busy, err := s.busy.BusyIntervals(ctx, docType, docNumber, start, end)
	if err != nil {
		return false, err
	}
	blocked, err := s.blocked.BlockedIntervals(ctx, docType, docNumber, start, end)
	if err != nil {
		return false, err
	}

	requested := appointment.TimeRange{Start: start, End: end}
	for _, b := range append(busy, blocked...) {
		if requested.Overlaps(b) {
			return false, nil
		}
	}
	return true, nil
}
