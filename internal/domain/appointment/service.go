package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/internal/platform/db"
)

// txRunner runs fn transactionally. Production wiring uses a serializable
// database transaction; tests substitute a pass-through.
type txRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns appointment booking. Writes run as check-then-insert inside a
// serializable transaction, with the storage-level exclusion constraint as a
// backstop; of two racing overlapping bookings exactly one commits and the
// other surfaces a scheduling conflict.
type Service struct {
	repo    Repository
	blocked BlockedSource
	tx      txRunner
}

// NewService creates the appointment service.
func NewService(repo Repository, blocked BlockedSource) *Service {
	return &Service{
		repo:    repo,
		blocked: blocked,
		tx:      db.WithSerializableTx,
	}
}

// Create validates and books a new appointment.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		conflict, err := s.WouldConflict(ctx, a.DoctorDocumentTypeID, a.DoctorDocumentNumber,
			a.StartUTC, a.EndUTC, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict && a.Blocking() {
			return apperr.ErrSchedulingConflict
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		if db.IsSerializationFailure(err) {
			// Retries exhausted; the competing writer won.
			return apperr.ErrSchedulingConflict
		}
		return err
	}
	return nil
}

// Get returns one appointment. Records of other tenants are invisible and
// report not found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update reschedules or edits an appointment. The conflict check excludes
// the appointment's own interval so an unchanged time never conflicts with
// itself.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		return apperr.Validation("id", "is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		a.TenantID = existing.TenantID

		if a.Blocking() {
			conflict, err := s.WouldConflict(ctx, a.DoctorDocumentTypeID, a.DoctorDocumentNumber,
				a.StartUTC, a.EndUTC, a.ID)
			if err != nil {
				return err
			}
			if conflict {
				return apperr.ErrSchedulingConflict
			}
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		if db.IsSerializationFailure(err) {
			return apperr.ErrSchedulingConflict
		}
		return err
	}
	return nil
}

// Cancel moves an appointment to the cancelled state, freeing its interval.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State == "cancelled" {
		return a, nil // idempotent
	}
	a.State = "cancelled"
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete permanently removes an appointment.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Search lists appointments matching the given filters, ordered by start.
func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// WouldConflict reports whether [start, end) collides with a blocking
// appointment or a blocked interval of the doctor. excludeID leaves one
// appointment out of the check.
func (s *Service) WouldConflict(ctx context.Context, docType int, docNumber string, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	appts, err := s.repo.Overlapping(ctx, docType, docNumber, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("check appointment overlap: %w", err)
	}
	if len(appts) > 0 {
		return true, nil
	}

	blocked, err := s.blocked.BlockedIntervals(ctx, docType, docNumber, start, end)
	if err != nil {
		return false, fmt.Errorf("check blocked intervals: %w", err)
	}
	requested := TimeRange{Start: start, End: end}
	for _, b := range blocked {
		if requested.Overlaps(b) {
			return true, nil
		}
	}
	return false, nil
}
