package tenant

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
)

// Tenant is one customer organization. Tenants are administered with the
// master key; all other data in the system hangs off a tenant id.
type Tenant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (t *Tenant) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Validation("name", "is required")
	}
	return nil
}
