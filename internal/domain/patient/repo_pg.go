package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/internal/platform/db"
)

type repoPG struct{}

// NewRepoPG creates the Postgres patient repository, operating on the
// tenant-scoped connection carried by the request context.
func NewRepoPG() Repository { return &repoPG{} }

const patientCols = `id, tenant_id, first_name, second_name,
	first_last_name, second_last_name, birth_date, gender_id,
	document_type_id, document_number, phone, email, eps_id,
	habeas_data, custom_fields, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.FirstName, &p.SecondName,
		&p.FirstLastName, &p.SecondLastName, &p.BirthDate, &p.GenderID,
		&p.DocumentTypeID, &p.DocumentNumber, &p.Phone, &p.Email, &p.EPSID,
		&p.HabeasData, &p.CustomFields, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.TenantID = tenantID

	_, err = q.Exec(ctx, `
		INSERT INTO patient (id, tenant_id, first_name, second_name,
			first_last_name, second_last_name, birth_date, gender_id,
			document_type_id, document_number, phone, email, eps_id,
			habeas_data, custom_fields)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.TenantID, p.FirstName, p.SecondName,
		p.FirstLastName, p.SecondLastName, p.BirthDate, p.GenderID,
		p.DocumentTypeID, p.DocumentNumber, p.Phone, p.Email, p.EPSID,
		p.HabeasData, p.CustomFields)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Validation("document_number", "already registered for this document type")
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanPatient(q.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

func (r *repoPG) GetByDocument(ctx context.Context, docType int, docNumber string) (*Patient, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanPatient(q.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient
		 WHERE tenant_id = $1 AND document_type_id = $2 AND document_number = $3`,
		tenantID, docType, docNumber))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE patient SET first_name=$3, second_name=$4, first_last_name=$5,
			second_last_name=$6, birth_date=$7, gender_id=$8,
			document_type_id=$9, document_number=$10, phone=$11, email=$12,
			eps_id=$13, habeas_data=$14, custom_fields=$15, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2`,
		p.ID, tenantID, p.FirstName, p.SecondName, p.FirstLastName,
		p.SecondLastName, p.BirthDate, p.GenderID,
		p.DocumentTypeID, p.DocumentNumber, p.Phone, p.Email,
		p.EPSID, p.HabeasData, p.CustomFields)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Validation("document_number", "already registered for this document type")
		}
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`DELETE FROM patient WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, cond+" $"+strconv.Itoa(len(args)))
	}

	if params.DocumentNumber != "" {
		add("document_number =", params.DocumentNumber)
	}
	if params.DocumentTypeID > 0 {
		add("document_type_id =", params.DocumentTypeID)
	}
	if params.Name != "" {
		args = append(args, "%"+params.Name+"%")
		n := "$" + strconv.Itoa(len(args))
		where = append(where, `(first_name ILIKE `+n+` OR second_name ILIKE `+n+
			` OR first_last_name ILIKE `+n+` OR second_last_name ILIKE `+n+`)`)
	}
	if params.Phone != "" {
		add("phone =", params.Phone)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patient WHERE `+cond+
		` ORDER BY first_last_name, first_name LIMIT $`+strconv.Itoa(len(args)-1)+
		` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, total, nil
}
