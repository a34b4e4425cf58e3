package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres implementation of Store. It queries through the
// pool directly: credential resolution runs before a tenant scope exists, so
// the api_key and tenant tables are not under row level security.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed API key store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const apiKeyColumns = `k.id, k.tenant_id, k.name, k.key_hash, k.key_prefix,
       k.created_at, k.revoked_at, k.last_used_at, t.active`

func scanAPIKey(row pgx.Row) (*APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&k.CreatedAt, &k.RevokedAt, &k.LastUsedAt, &k.TenantActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}

// CreateKey implements Store.
func (s *PGStore) CreateKey(ctx context.Context, key *APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_key (id, tenant_id, name, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByID implements Store.
func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_key k
		JOIN tenant t ON t.id = k.tenant_id
		WHERE k.id = $1`, id)
	return scanAPIKey(row)
}

// GetByHash implements Store.
func (s *PGStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_key k
		JOIN tenant t ON t.id = k.tenant_id
		WHERE k.key_hash = $1`, hash)
	return scanAPIKey(row)
}

// ListByTenant implements Store.
func (s *PGStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*APIKey, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_key WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count api keys: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_key k
		JOIN tenant t ON t.id = k.tenant_id
		WHERE k.tenant_id = $1
		ORDER BY k.created_at
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, total, nil
}

// UpdateKey implements Store.
func (s *PGStore) UpdateKey(ctx context.Context, key *APIKey) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_key
		SET name = $2, key_hash = $3, key_prefix = $4, revoked_at = $5, last_used_at = $6
		WHERE id = $1`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.RevokedAt, key.LastUsedAt)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// MarkUsed implements Store.
func (s *PGStore) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_key SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark api key used: %w", err)
	}
	return nil
}
