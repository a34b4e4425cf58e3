// Package auth implements credential resolution for the API surface.
//
// Clients authenticate with opaque API keys. The raw key material is never
// stored; only a SHA-256 hash is persisted, and a key resolves to exactly one
// tenant. The master key from configuration resolves to the admin scope and
// is never valid for tenant data operations.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/secreapi/secre/internal/platform/db"
)

var (
	// ErrKeyNotFound indicates the requested API key does not exist in the store.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrKeyRevoked indicates the API key has been revoked and can no longer be used.
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrInvalidKey indicates the provided raw key does not match any stored hash.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrTenantInactive indicates the key's tenant has been deactivated. Its
	// keys stop resolving without being individually revoked.
	ErrTenantInactive = errors.New("tenant inactive")
)

// APIKey represents a tenant credential. The actual key material is never
// stored; only a SHA-256 hash is persisted.
type APIKey struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Name         string     `json:"name"`
	KeyHash      string     `json:"-"` // never serialize
	KeyPrefix    string     `json:"key_prefix"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	TenantActive bool       `json:"-"`
}

// Store defines the contract for persisting and querying API keys.
// Implementations may be backed by in-memory maps or a relational database.
type Store interface {
	// CreateKey persists a new API key.
	CreateKey(ctx context.Context, key *APIKey) error

	// GetByID retrieves an API key by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*APIKey, error)

	// GetByHash retrieves an API key by its SHA-256 hash. TenantActive is
	// populated from the owning tenant.
	GetByHash(ctx context.Context, hash string) (*APIKey, error)

	// ListByTenant returns API keys belonging to a tenant with pagination.
	// Returns the matching keys and the total count (before pagination).
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*APIKey, int, error)

	// UpdateKey persists changes to an existing API key.
	UpdateKey(ctx context.Context, key *APIKey) error

	// MarkUsed records when the key last authenticated a request.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// InMemoryStore provides a thread-safe in-memory implementation of Store.
// It is suitable for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*APIKey
	byHash   map[string]uuid.UUID
	ordered  []uuid.UUID // insertion-order IDs for stable pagination
	inactive map[uuid.UUID]bool
}

// NewInMemoryStore creates a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[uuid.UUID]*APIKey),
		byHash:   make(map[string]uuid.UUID),
		inactive: make(map[uuid.UUID]bool),
	}
}

// SetTenantActive toggles the active flag the store reports for a tenant's
// keys. The Postgres store derives this from a join; tests drive it directly.
func (s *InMemoryStore) SetTenantActive(tenantID uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactive[tenantID] = !active
}

// CreateKey implements Store.
func (s *InMemoryStore) CreateKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyKey(key)
	s.byID[cp.ID] = cp
	if cp.KeyHash != "" {
		s.byHash[cp.KeyHash] = cp.ID
	}
	s.ordered = append(s.ordered, cp.ID)
	return nil
}

// GetByID implements Store.
func (s *InMemoryStore) GetByID(_ context.Context, id uuid.UUID) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.byID[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return s.withTenantActive(k), nil
}

// GetByHash implements Store.
func (s *InMemoryStore) GetByHash(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	k, ok := s.byID[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return s.withTenantActive(k), nil
}

// ListByTenant implements Store.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*APIKey, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []*APIKey
	for _, id := range s.ordered {
		k, ok := s.byID[id]
		if !ok {
			continue
		}
		if k.TenantID == tenantID {
			matching = append(matching, k)
		}
	}

	total := len(matching)

	if offset > len(matching) {
		offset = len(matching)
	}
	matching = matching[offset:]
	if limit > 0 && limit < len(matching) {
		matching = matching[:limit]
	}

	result := make([]*APIKey, len(matching))
	for i, k := range matching {
		result[i] = s.withTenantActive(k)
	}
	return result, total, nil
}

// UpdateKey implements Store.
func (s *InMemoryStore) UpdateKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[key.ID]
	if !ok {
		return ErrKeyNotFound
	}

	if existing.KeyHash != key.KeyHash {
		delete(s.byHash, existing.KeyHash)
		if key.KeyHash != "" {
			s.byHash[key.KeyHash] = key.ID
		}
	}

	s.byID[key.ID] = copyKey(key)
	return nil
}

// MarkUsed implements Store.
func (s *InMemoryStore) MarkUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byID[id]
	if !ok {
		return ErrKeyNotFound
	}
	t := at
	k.LastUsedAt = &t
	return nil
}

func (s *InMemoryStore) withTenantActive(k *APIKey) *APIKey {
	cp := copyKey(k)
	cp.TenantActive = !s.inactive[k.TenantID]
	return cp
}

// copyKey returns a deep copy of an APIKey to prevent mutation through shared pointers.
func copyKey(k *APIKey) *APIKey {
	cp := *k
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		cp.RevokedAt = &t
	}
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

const (
	// apiKeyPrefix is prepended to every generated key for easy identification
	// in logs and configuration files.
	apiKeyPrefix = "sk_"

	// apiKeyRandomBytes is the number of random bytes used to generate the
	// key material (encoded as hex => 32 hex chars).
	apiKeyRandomBytes = 16
)

// Manager resolves raw API keys to request scopes and drives the key
// lifecycle: issue, revoke, rotate.
type Manager struct {
	store     Store
	masterKey string
}

// NewManager creates a manager backed by the given store. masterKey may be
// empty, in which case the admin surface is unreachable.
func NewManager(store Store, masterKey string) *Manager {
	return &Manager{store: store, masterKey: masterKey}
}

// Issue creates a new API key for a tenant and persists it. It returns the
// APIKey record and the raw key string. The raw key is only available at
// issue time and must be shown to the caller exactly once.
func (m *Manager) Issue(ctx context.Context, tenantID uuid.UUID, name string) (*APIKey, string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return nil, "", fmt.Errorf("generating raw key: %w", err)
	}

	key := &APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   hashKey(rawKey),
		KeyPrefix: rawKey[:8],
		CreatedAt: time.Now().UTC(),
	}

	if err := m.store.CreateKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("storing key: %w", err)
	}
	return copyKey(key), rawKey, nil
}

// Resolve authenticates a raw key and returns the scope it carries.
//
// The master key is checked first, by constant-time comparison against
// configuration; it yields the master scope without touching the store.
// Every other key is hashed and looked up; revoked keys and keys of inactive
// tenants do not resolve. On success the key's last-used timestamp is
// updated best-effort: a failure there never fails the request.
func (m *Manager) Resolve(ctx context.Context, rawKey string) (db.Scope, *APIKey, error) {
	if rawKey == "" {
		return db.Scope{}, nil, ErrInvalidKey
	}

	if m.masterKey != "" &&
		subtle.ConstantTimeCompare([]byte(rawKey), []byte(m.masterKey)) == 1 {
		return db.Scope{Master: true}, nil, nil
	}

	key, err := m.store.GetByHash(ctx, hashKey(rawKey))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return db.Scope{}, nil, ErrInvalidKey
		}
		return db.Scope{}, nil, fmt.Errorf("looking up key: %w", err)
	}

	if key.RevokedAt != nil {
		return db.Scope{}, nil, ErrKeyRevoked
	}
	if !key.TenantActive {
		return db.Scope{}, nil, ErrTenantInactive
	}

	_ = m.store.MarkUsed(ctx, key.ID, time.Now().UTC())

	return db.Scope{TenantID: key.TenantID}, key, nil
}

// Revoke marks the key revoked. The operation is idempotent: revoking an
// already-revoked key succeeds silently.
func (m *Manager) Revoke(ctx context.Context, id uuid.UUID) error {
	key, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if key.RevokedAt != nil {
		return nil // idempotent
	}

	now := time.Now().UTC()
	key.RevokedAt = &now
	return m.store.UpdateKey(ctx, key)
}

// Rotate revokes the existing key and issues a new one for the same tenant
// under the same name. Returns the new APIKey and the raw key string.
func (m *Manager) Rotate(ctx context.Context, id uuid.UUID) (*APIKey, string, error) {
	old, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if err := m.Revoke(ctx, id); err != nil {
		return nil, "", fmt.Errorf("revoking old key: %w", err)
	}

	return m.Issue(ctx, old.TenantID, old.Name)
}

// List returns API keys for the given tenant with pagination.
func (m *Manager) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*APIKey, int, error) {
	return m.store.ListByTenant(ctx, tenantID, limit, offset)
}

// Get returns a single key by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*APIKey, error) {
	return m.store.GetByID(ctx, id)
}

// GenerateMasterKey produces a random key suitable for MASTER_API_KEY.
func GenerateMasterKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "mk_" + hex.EncodeToString(b), nil
}

// generateRawKey produces a cryptographically random key string with the
// platform prefix: sk_<32-hex-chars>.
func generateRawKey() (string, error) {
	b := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

// hashKey returns the hex-encoded SHA-256 hash of the raw key string.
func hashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
