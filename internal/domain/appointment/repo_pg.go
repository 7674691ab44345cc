package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securemed/mednotes/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, title, patient_name, patient_id, appointment_type, status,
	location, notes, start_time, end_time, created_by, created_by_name,
	created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Title, &a.PatientName, &a.PatientID, &a.AppointmentType, &a.Status,
		&a.Location, &a.Notes, &a.StartTime, &a.EndTime, &a.CreatedBy, &a.CreatedByName,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: unknown patient", ErrInvalid)
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, title, patient_name, patient_id, appointment_type, status,
			location, notes, start_time, end_time, created_by, created_by_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		a.ID, a.Title, a.PatientName, a.PatientID, a.AppointmentType, a.Status,
		a.Location, a.Notes, a.StartTime, a.EndTime, a.CreatedBy, a.CreatedByName,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translateWriteErr(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET title=$2, patient_name=$3, appointment_type=$4, status=$5,
			location=$6, notes=$7, start_time=$8, end_time=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Title, a.PatientName, a.AppointmentType, a.Status,
		a.Location, a.Notes, a.StartTime, a.EndTime,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var where []string
	var args []interface{}
	idx := 1
	if !f.Start.IsZero() {
		where = append(where, fmt.Sprintf("start_time >= $%d", idx))
		args = append(args, f.Start)
		idx++
	}
	if !f.End.IsZero() {
		where = append(where, fmt.Sprintf("start_time <= $%d", idx))
		args = append(args, f.End)
		idx++
	}
	if f.PatientID != uuid.Nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, f.PatientID)
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+apptCols+` FROM appointments`+clause+` ORDER BY start_time ASC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
