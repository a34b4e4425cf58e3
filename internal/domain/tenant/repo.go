package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists tenants. Tenant rows live outside row-level security:
// they are only reachable through master-key endpoints and the bootstrap
// path, so implementations use the shared pool rather than a scoped
// connection.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error

	// CreateFirst inserts t only while no tenant exists yet. It reports
	// whether the insert happened; concurrent callers see exactly one true.
	CreateFirst(ctx context.Context, t *Tenant) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, int, error)
	Count(ctx context.Context) (int, error)
}
