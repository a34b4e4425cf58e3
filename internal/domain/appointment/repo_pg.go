package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/internal/platform/db"
)

type repoPG struct{}

// NewRepoPG creates the Postgres appointment repository. It has no pool of
// its own: every call runs on the tenant-scoped connection carried by the
// request context, and fails if none is bound.
func NewRepoPG() Repository { return &repoPG{} }

const apptCols = `id, tenant_id, start_utc, end_utc,
	patient_document_type_id, patient_document_number,
	doctor_document_type_id, doctor_document_number,
	modality, state, notification_state, appointment_type,
	clinic_id, comment, custom_fields, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.StartUTC, &a.EndUTC,
		&a.PatientDocumentTypeID, &a.PatientDocumentNumber,
		&a.DoctorDocumentTypeID, &a.DoctorDocumentNumber,
		&a.Modality, &a.State, &a.NotificationState, &a.AppointmentType,
		&a.ClinicID, &a.Comment, &a.CustomFields, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.TenantID = tenantID

	_, err = q.Exec(ctx, `
		INSERT INTO appointment (id, tenant_id, start_utc, end_utc,
			patient_document_type_id, patient_document_number,
			doctor_document_type_id, doctor_document_number,
			modality, state, notification_state, appointment_type,
			clinic_id, comment, custom_fields)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.TenantID, a.StartUTC, a.EndUTC,
		a.PatientDocumentTypeID, a.PatientDocumentNumber,
		a.DoctorDocumentTypeID, a.DoctorDocumentNumber,
		a.Modality, a.State, a.NotificationState, a.AppointmentType,
		a.ClinicID, a.Comment, a.CustomFields)
	if err != nil {
		if db.IsExclusionViolation(err) {
			return apperr.ErrSchedulingConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	return scanAppointment(q.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	q, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE appointment SET start_utc=$3, end_utc=$4,
			patient_document_type_id=$5, patient_document_number=$6,
			doctor_document_type_id=$7, doctor_document_number=$8,
			modality=$9, state=$10, notification_state=$11,
			appointment_type=$12, clinic_id=$13, comment=$14,
			custom_fields=$15, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2`,
		a.ID, tenantID, a.StartUTC, a.EndUTC,
		a.PatientDocumentTypeID, a.PatientDocumentNumber,
		a.DoctorDocumentTypeID, a.DoctorDocumentNumber,
		a.Modality, a.State, a.NotificationState, a.AppointmentType,
		a.ClinicID, a.Comment, a.CustomFields)
	if err != nil {
		if db.IsExclusionViolation(err) {
			return apperr.ErrSchedulingConflict
		}
		return fmt.Errorf("update appointment: %w", err)
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
		`DELETE FROM appointment WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
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

	if params.From != nil {
		add("start_utc >=", *params.From)
	}
	if params.To != nil {
		add("start_utc <", *params.To)
	}
	if params.State != "" {
		add("state =", params.State)
	}
	if params.Modality != "" {
		add("modality =", params.Modality)
	}
	if params.PatientDocumentNumber != "" {
		add("patient_document_number =", params.PatientDocumentNumber)
	}
	if params.PatientDocumentTypeID > 0 {
		add("patient_document_type_id =", params.PatientDocumentTypeID)
	}
	if params.DoctorDocumentNumber != "" {
		add("doctor_document_number =", params.DoctorDocumentNumber)
	}
	if params.DoctorDocumentTypeID > 0 {
		add("doctor_document_type_id =", params.DoctorDocumentTypeID)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE `+cond+
		` ORDER BY start_utc LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate appointments: %w", err)
	}
	return appts, total, nil
}

func (r *repoPG) Overlapping(ctx context.Context, docType int, docNumber string, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	q, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := db.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	// Half-open overlap: startA < endB AND startB < endA.
	rows, err := q.Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE tenant_id = $1
		  AND doctor_document_type_id = $2 AND doctor_document_number = $3
		  AND state IN ('scheduled', 'confirmed', 'completed')
		  AND start_utc < $5 AND $4 < end_utc
		  AND id <> $6
		ORDER BY start_utc`,
		tenantID, docType, docNumber, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query overlapping appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overlapping appointments: %w", err)
	}
	return appts, nil
}

func (r *repoPG) BusyIntervals(ctx context.Context, docType int, docNumber string, from, to time.Time) ([]TimeRange, error) {
	appts, err := r.Overlapping(ctx, docType, docNumber, from, to, uuid.Nil)
	if err != nil {
		return nil, err
	}
	ranges := make([]TimeRange, len(appts))
	for i, a := range appts {
		ranges[i] = TimeRange{Start: a.StartUTC, End: a.EndUTC}
	}
	return ranges, nil
}
