package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
)

// Patient is a tenant-owned demographic record. Identity within a tenant is
// the (document_type_id, document_number) pair, enforced by a unique
// constraint; the same person may exist independently under other tenants.
type Patient struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	TenantID           uuid.UUID      `db:"tenant_id" json:"-"`
	FirstName          string         `db:"first_name" json:"first_name"`
	SecondName         *string        `db:"second_name" json:"second_name,omitempty"`
	FirstLastName      string         `db:"first_last_name" json:"first_last_name"`
	SecondLastName     *string        `db:"second_last_name" json:"second_last_name,omitempty"`
	BirthDate          *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	GenderID           *int           `db:"gender_id" json:"gender_id,omitempty"`
	DocumentTypeID     int            `db:"document_type_id" json:"document_type_id"`
	DocumentNumber     string         `db:"document_number" json:"document_number"`
	Phone              *string        `db:"phone" json:"phone,omitempty"`
	Email              *string        `db:"email" json:"email,omitempty"`
	EPSID              *int           `db:"eps_id" json:"eps_id,omitempty"`
	HabeasData         bool           `db:"habeas_data" json:"habeas_data"`
	CustomFields       map[string]any `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks client-controlled fields.
func (p *Patient) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" {
		return apperr.Validation("first_name", "is required")
	}
	if strings.TrimSpace(p.FirstLastName) == "" {
		return apperr.Validation("first_last_name", "is required")
	}
	if p.DocumentTypeID <= 0 {
		return apperr.Validation("document_type_id", "is required")
	}
	if strings.TrimSpace(p.DocumentNumber) == "" {
		return apperr.Validation("document_number", "is required")
	}
	if p.Email != nil && *p.Email != "" && !strings.Contains(*p.Email, "@") {
		return apperr.Validation("email", "is not a valid address")
	}
	return nil
}

// SearchParams narrows a patient listing. Name matches against any of the
// four name columns, case-insensitively.
type SearchParams struct {
	DocumentTypeID int
	DocumentNumber string
	Name           string
	Phone          string
}
