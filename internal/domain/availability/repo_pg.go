package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secreapi/secre/internal/domain/appointment"
	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/internal/platform/db"
)

type windowRepoPG struct{}

// NewWindowRepoPG creates the Postgres window repository. All calls run on
// the tenant-scoped connection from the request context.
func NewWindowRepoPG() WindowRepository { return &windowRepoPG{} }

const windowCols = `id, tenant_id, doctor_document_type_id, doctor_document_number,
	day_of_week, start_minute, end_minute, slot_minutes, active, created_at, updated_at`

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	err := row.Scan(&w.ID, &w.TenantID, &w.DoctorDocumentTypeID, &w.DoctorDocumentNumber,
		&w.DayOfWeek, &w.StartTime, &w.EndTime, &w.SlotMinutes, &w.Active,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan availability window: %w", err)
	}
	return &w, nil
}

func (r *windowRepoPG) Create(ctx context.Context, w *Window) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.TenantID = tenantID

	_, err = q.Exec(ctx, `
		INSERT INTO doctor_availability (id, tenant_id, doctor_document_type_id,
			doctor_document_number, day_of_week, start_minute, end_minute,
			slot_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		w.ID, w.TenantID, w.DoctorDocumentTypeID, w.DoctorDocumentNumber,
		w.DayOfWeek, int(w.StartTime), int(w.EndTime), w.SlotMinutes, w.Active)
	if err != nil {
		return fmt.Errorf("insert availability window: %w", err)
	}
	return nil
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanWindow(q.QueryRow(ctx,
		`SELECT `+windowCols+` FROM doctor_availability WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

func (r *windowRepoPG) Update(ctx context.Context, w *Window) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE doctor_availability
		SET day_of_week=$3, start_minute=$4, end_minute=$5, slot_minutes=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2`,
		w.ID, tenantID, w.DayOfWeek, int(w.StartTime), int(w.EndTime),
		w.SlotMinutes, w.Active)
	if err != nil {
		return fmt.Errorf("update availability window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *windowRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`DELETE FROM doctor_availability WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete availability window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *windowRepoPG) ListByDoctor(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*Window, int, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = q.QueryRow(ctx, `
		SELECT COUNT(*) FROM doctor_availability
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3`,
		tenantID, docType, docNumber).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count availability windows: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+windowCols+` FROM doctor_availability
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3
		ORDER BY day_of_week, start_minute
		LIMIT $4 OFFSET $5`,
		tenantID, docType, docNumber, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list availability windows: %w", err)
	}
	defer rows.Close()

	windows, err := collectWindows(rows)
	if err != nil {
		return nil, 0, err
	}
	return windows, total, nil
}

func (r *windowRepoPG) ListForDay(ctx context.Context, docType int, docNumber string, dayOfWeek int) ([]*Window, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+windowCols+` FROM doctor_availability
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3
		  AND day_of_week = $4 AND active
		ORDER BY start_minute`,
		tenantID, docType, docNumber, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list windows for day: %w", err)
	}
	defer rows.Close()

	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]*Window, error) {
	var windows []*Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability windows: %w", err)
	}
	return windows, nil
}

type blockedRepoPG struct{}

// NewBlockedRepoPG creates the Postgres blocked interval repository.
func NewBlockedRepoPG() BlockedRepository { return &blockedRepoPG{} }

const blockedCols = `id, tenant_id, doctor_document_type_id, doctor_document_number,
	start_at, end_at, reason, active, created_at`

func scanBlocked(row pgx.Row) (*BlockedInterval, error) {
	var b BlockedInterval
	err := row.Scan(&b.ID, &b.TenantID, &b.DoctorDocumentTypeID, &b.DoctorDocumentNumber,
		&b.StartAt, &b.EndAt, &b.Reason, &b.Active, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan blocked interval: %w", err)
	}
	return &b, nil
}

func (r *blockedRepoPG) Create(ctx context.Context, b *BlockedInterval) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.TenantID = tenantID

	_, err = q.Exec(ctx, `
		INSERT INTO doctor_blocked_time (id, tenant_id, doctor_document_type_id,
			doctor_document_number, start_at, end_at, reason, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.TenantID, b.DoctorDocumentTypeID, b.DoctorDocumentNumber,
		b.StartAt, b.EndAt, b.Reason, b.Active)
	if err != nil {
		return fmt.Errorf("insert blocked interval: %w", err)
	}
	return nil
}

func (r *blockedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BlockedInterval, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanBlocked(q.QueryRow(ctx,
		`SELECT `+blockedCols+` FROM doctor_blocked_time WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

func (r *blockedRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`DELETE FROM doctor_blocked_time WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete blocked interval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *blockedRepoPG) ListByDoctor(ctx context.Context, docType int, docNumber string, limit, offset int) ([]*BlockedInterval, int, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = q.QueryRow(ctx, `
		SELECT COUNT(*) FROM doctor_blocked_time
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3`,
		tenantID, docType, docNumber).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count blocked intervals: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+blockedCols+` FROM doctor_blocked_time
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3
		ORDER BY start_at
		LIMIT $4 OFFSET $5`,
		tenantID, docType, docNumber, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list blocked intervals: %w", err)
	}
	defer rows.Close()

	var blocked []*BlockedInterval
	for rows.Next() {
		b, err := scanBlocked(rows)
		if err != nil {
			return nil, 0, err
		}
		blocked = append(blocked, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate blocked intervals: %w", err)
	}
	return blocked, total, nil
}

func (r *blockedRepoPG) BlockedIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]appointment.TimeRange, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT start_at, end_at FROM doctor_blocked_time
		WHERE tenant_id = $1 AND doctor_document_type_id = $2 AND doctor_document_number = $3
		  AND active AND start_at < $5 AND $4 < end_at
		ORDER BY start_at`,
		tenantID, docType, docNumber, from, to)
	if err != nil {
		return nil, fmt.Errorf("query blocked intervals: %w", err)
	}
	defer rows.Close()

	var ranges []appointment.TimeRange
	for rows.Next() {
		var tr appointment.TimeRange
		if err := rows.Scan(&tr.Start, &tr.End); err != nil {
			return nil, fmt.Errorf("scan blocked interval: %w", err)
		}
		ranges = append(ranges, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked intervals: %w", err)
	}
	return ranges, nil
}
