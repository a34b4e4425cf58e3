package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/internal/platform/auth"
)

// Service administers tenants and their credentials. Its methods assume the
// caller was already gated by the master key, except Bootstrap which is the
// one unauthenticated path and only works on an empty system.
type Service struct {
	repo Repository
	keys *auth.Manager
}

func NewService(repo Repository, keys *auth.Manager) *Service {
	return &Service{repo: repo, keys: keys}
}

func (s *Service) Create(ctx context.Context, t *Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Active = true
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.Active = false
	return s.repo.Update(ctx, t)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.Active = true
	return s.repo.Update(ctx, t)
}

// IssueKey creates a new API key for the tenant. The raw key is returned
// exactly once; only its hash is stored.
func (s *Service) IssueKey(ctx context.Context, tenantID uuid.UUID, name string) (*auth.APIKey, string, error) {
	if _, err := s.repo.GetByID(ctx, tenantID); err != nil {
		return nil, "", err
	}
	return s.keys.Issue(ctx, tenantID, name)
}

func (s *Service) RevokeKey(ctx context.Context, id uuid.UUID) error {
	return s.keys.Revoke(ctx, id)
}

func (s *Service) RotateKey(ctx context.Context, id uuid.UUID) (*auth.APIKey, string, error) {
	return s.keys.Rotate(ctx, id)
}

func (s *Service) ListKeys(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*auth.APIKey, int, error) {
	return s.keys.List(ctx, tenantID, limit, offset)
}

// BootstrapResult is returned by Bootstrap: the created tenant plus its
// first credential.
type BootstrapResult struct {
	Tenant *Tenant      `json:"tenant"`
	Key    *auth.APIKey `json:"key"`
	RawKey string       `json:"api_key"`
}

// Bootstrap creates the first tenant and its first API key. The storage
// layer admits exactly one first tenant, so concurrent bootstrap attempts
// cannot both succeed and the endpoint is safe to leave unauthenticated.
func (s *Service) Bootstrap(ctx context.Context, name string) (*BootstrapResult, error) {
	t := &Tenant{Name: name, Active: true}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateFirst(ctx, t)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apperr.Validation("bootstrap", "system already has tenants")
	}

	key, raw, err := s.keys.Issue(ctx, t.ID, "bootstrap")
	if err != nil {
		return nil, fmt.Errorf("issue bootstrap key: %w", err)
	}
	return &BootstrapResult{Tenant: t, Key: key, RawKey: raw}, nil
}
