package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments for the tenant bound to the request
// context. Every query filters by tenant in SQL even though row level
// security already scopes the connection.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error)

	// Overlapping returns blocking appointments for a doctor whose interval
	// intersects [start, end). excludeID, when non-nil, leaves that
	// appointment out so updates do not conflict with themselves.
	Overlapping(ctx context.Context, docType int, docNumber string, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)

	// BusyIntervals returns the occupied intervals for a doctor inside
	// [from, to), ordered by start.
	BusyIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]TimeRange, error)
}

// BlockedSource supplies a doctor's administrative blocked intervals, owned
// by the availability subsystem.
type BlockedSource interface {
	BlockedIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]TimeRange, error)
}
