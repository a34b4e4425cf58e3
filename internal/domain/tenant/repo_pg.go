package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secreapi/secre/internal/platform/apperr"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates the Postgres tenant repository on the shared pool.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const tenantCols = `id, name, active, created_at, updated_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenant (id, name, active) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// bootstrapLockKey serializes competing bootstrap attempts through a
// transaction-scoped advisory lock.
const bootstrapLockKey = 720413

func (r *repoPG) CreateFirst(ctx context.Context, t *Tenant) (bool, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin bootstrap: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return false, fmt.Errorf("acquire bootstrap lock: %w", err)
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM tenant`).Scan(&n); err != nil {
		return false, fmt.Errorf("count tenants: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO tenant (id, name, active) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.Active); err != nil {
		return false, fmt.Errorf("insert first tenant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit bootstrap: %w", err)
	}
	return true, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenant WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *Tenant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenant SET name = $2, active = $3, updated_at = NOW() WHERE id = $1`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantCols+` FROM tenant ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, total, nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenant`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return n, nil
}
