package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/domain/appointment"
)

// WindowRepository persists weekly availability windows for the tenant bound
// to the request context.
type WindowRepository interface {
	Create(ctx context.Context, w *Window) error
	GetByID(ctx context.Context, id uuid.UUID) (*Window, error)
	Update(ctx context.Context, w *Window) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*Window, int, error)

	// ListForDay returns the active windows of a doctor for one day of the
	// week (Monday=0), ordered by start time.
	ListForDay(ctx context.Context, docType int, docNumber string, dayOfWeek int) ([]*Window, error)
}

// BlockedRepository persists blocked intervals. It doubles as the
// appointment package's BlockedSource, so the conflict checker sees the same
// data the slot generator does.
type BlockedRepository interface {
	Create(ctx context.Context, b *BlockedInterval) error
	GetByID(ctx context.Context, id uuid.UUID) (*BlockedInterval, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*BlockedInterval, int, error)

	// BlockedIntervals returns the active blocked intervals of a doctor
	// intersecting [from, to), as plain time ranges.
	BlockedIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]appointment.TimeRange, error)
}

// BusySource supplies a doctor's booked intervals; the appointment
// repository implements it.
type BusySource interface {
	BusyIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]appointment.TimeRange, error)
}
