package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the booking path cares about: the exclusion
// constraint backstop and serialization failures both mean a racing
// booking won, so both surface as conflicts rather than server errors.
const (
	exclusionViolation   = "23P01"
	serializationFailure = "40001"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool pgQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{pool: q}
}

const selectColumns = `
	SELECT a.id, a.doctor_id, a.patient_id, du.full_name, pu.full_name,
	       a.start_time, a.end_time, a.status, COALESCE(a.notes, ''),
	       a.created_at, a.updated_at
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN user_accounts du ON du.id = d.user_id
	JOIN patients p ON p.id = a.patient_id
	JOIN user_accounts pu ON pu.id = p.user_id
`

const doctorOverlapQuery = `
	SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE doctor_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time <= $3
		  AND end_time >= $2
	)
`

const patientOverlapQuery = `
	SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE patient_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time <= $3
		  AND end_time >= $2
	)
`

// CreateIfFree re-checks both parties and inserts inside one serializable
// transaction. The exclusion constraint on (doctor_id, time range) is the
// storage-level backstop if two transactions race past the check.
func (r *PostgresRepository) CreateIfFree(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doctorBusy bool
	if err := tx.QueryRow(ctx, doctorOverlapQuery, appt.DoctorID, appt.StartTime, appt.EndTime).Scan(&doctorBusy); err != nil {
		return nil, fmt.Errorf("appointments: doctor overlap check: %w", err)
	}
	if doctorBusy {
		return nil, &ConflictError{Party: "doctor"}
	}

	var patientBusy bool
	if err := tx.QueryRow(ctx, patientOverlapQuery, appt.PatientID, appt.StartTime, appt.EndTime).Scan(&patientBusy); err != nil {
		return nil, fmt.Errorf("appointments: patient overlap check: %w", err)
	}
	if patientBusy {
		return nil, &ConflictError{Party: "patient"}
	}

	stored := *appt
	if err := tx.QueryRow(ctx,
		`INSERT INTO appointments (doctor_id, patient_id, start_time, end_time, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		appt.DoctorID, appt.PatientID, appt.StartTime, appt.EndTime, appt.Status, nullableNotes(appt.Notes),
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, classifyInsertError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyInsertError(err)
	}
	return &stored, nil
}

func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case exclusionViolation, serializationFailure:
			return &ConflictError{Party: "doctor"}
		}
	}
	return fmt.Errorf("appointments: insert: %w", err)
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	return scanOne(r.pool.QueryRow(ctx, selectColumns+` WHERE a.id = $1`, id))
}

// Transition applies the status change only when the current status is a
// legal source for the target; the conditional UPDATE is the row-level CAS
// that keeps racing transitions deterministic.
func (r *PostgresRepository) Transition(ctx context.Context, id int64, to Status) (*Appointment, error) {
	sources := sourcesFor(to)
	states := make([]string, len(sources))
	for i, s := range sources {
		states[i] = string(s)
	}

	var updated int64
	err := r.pool.QueryRow(ctx,
		`UPDATE appointments
		 SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = ANY($3)
		 RETURNING id`,
		to, id, states,
	).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from an illegal source state.
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}
	return r.Get(ctx, updated)
}

func (r *PostgresRepository) ListByDoctor(ctx context.Context, doctorID int64, from, to *time.Time) ([]*Appointment, error) {
	query := selectColumns + ` WHERE a.doctor_id = $1`
	args := []any{doctorID}
	query, args = appendWindow(query, args, from, to)
	query += ` ORDER BY a.start_time`
	return r.listQuery(ctx, query, args...)
}

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID int64, from, to *time.Time) ([]*Appointment, error) {
	query := selectColumns + ` WHERE a.patient_id = $1`
	args := []any{patientID}
	query, args = appendWindow(query, args, from, to)
	query += ` ORDER BY a.start_time`
	return r.listQuery(ctx, query, args...)
}

func (r *PostgresRepository) ListByDoctorStatus(ctx context.Context, doctorID int64, status Status) ([]*Appointment, error) {
	return r.listQuery(ctx,
		selectColumns+` WHERE a.doctor_id = $1 AND a.status = $2 ORDER BY a.start_time`,
		doctorID, status)
}

func (r *PostgresRepository) ListByDoctorWindowStatus(ctx context.Context, doctorID int64, from, to time.Time, status Status) ([]*Appointment, error) {
	return r.listQuery(ctx,
		selectColumns+` WHERE a.doctor_id = $1 AND a.status = $2 AND a.start_time >= $3 AND a.start_time < $4 ORDER BY a.start_time`,
		doctorID, status, from, to)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Appointment, error) {
	return r.listQuery(ctx, selectColumns+` ORDER BY a.start_time`)
}

func (r *PostgresRepository) DoctorOverlapExists(ctx context.Context, doctorID int64, start, end time.Time) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, doctorOverlapQuery, doctorID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: doctor overlap check: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) PatientOverlapExists(ctx context.Context, patientID int64, start, end time.Time) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, patientOverlapQuery, patientID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: patient overlap check: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) listQuery(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func appendWindow(query string, args []any, from, to *time.Time) (string, []any) {
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND a.start_time >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND a.start_time <= $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID, &a.DoctorID, &a.PatientID, &a.DoctorName, &a.PatientName,
		&a.StartTime, &a.EndTime, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	return &a, nil
}

func scanOne(row pgx.Row) (*Appointment, error) {
	a, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func nullableNotes(notes string) any {
	if notes == "" {
		return nil
	}
	return notes
}
