package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresRepository stores the directory in the relational database.
type PostgresRepository struct {
	pool pgQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("directory: querier required")
	}
	return &PostgresRepository{pool: q}
}

const doctorColumns = `
	SELECT d.id, d.user_id, u.full_name, u.email, COALESCE(u.phone, ''), COALESCE(d.specialization, '')
	FROM doctors d
	JOIN user_accounts u ON u.id = d.user_id
`

const patientColumns = `
	SELECT p.id, p.user_id, u.full_name, u.email, COALESCE(u.phone, ''), p.date_of_birth, COALESCE(p.gender, '')
	FROM patients p
	JOIN user_accounts u ON u.id = p.user_id
`

func (r *PostgresRepository) FindDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx, doctorColumns+` WHERE d.id = $1`, id))
}

func (r *PostgresRepository) FindDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx, doctorColumns+` WHERE lower(u.email) = lower($1)`, email))
}

func (r *PostgresRepository) FindPatient(ctx context.Context, id int64) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, patientColumns+` WHERE p.id = $1`, id))
}

func (r *PostgresRepository) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, patientColumns+` WHERE lower(u.email) = lower($1)`, email))
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*UserAccount, error) {
	query := `
		SELECT id, email, password_hash, full_name, COALESCE(phone, ''), role
		FROM user_accounts
		WHERE lower(email) = lower($1)
	`
	var u UserAccount
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("directory: select user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	rows, err := r.pool.Query(ctx, doctorColumns+` ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("directory: list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.FullName, &d.Email, &d.Phone, &d.Specialization); err != nil {
			return nil, fmt.Errorf("directory: scan doctor: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// CreatePatient inserts the user account and patient row in one transaction.
func (r *PostgresRepository) CreatePatient(ctx context.Context, req *RegisterPatient) (*Patient, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("directory: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	userID, err := insertUser(ctx, tx, req.Email, req.PasswordHash, req.FullName, req.Phone, RolePatient)
	if err != nil {
		return nil, err
	}

	p := &Patient{
		UserID:      userID,
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO patients (user_id, date_of_birth, gender) VALUES ($1, $2, $3) RETURNING id`,
		userID, req.DateOfBirth, nullable(req.Gender),
	).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("directory: insert patient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("directory: commit: %w", err)
	}
	return p, nil
}

// CreateDoctor inserts the user account and doctor row in one transaction.
func (r *PostgresRepository) CreateDoctor(ctx context.Context, req *RegisterDoctor) (*Doctor, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("directory: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	userID, err := insertUser(ctx, tx, req.Email, req.PasswordHash, req.FullName, req.Phone, RoleDoctor)
	if err != nil {
		return nil, err
	}

	d := &Doctor{
		UserID:         userID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO doctors (user_id, specialization) VALUES ($1, $2) RETURNING id`,
		userID, nullable(req.Specialization),
	).Scan(&d.ID); err != nil {
		return nil, fmt.Errorf("directory: insert doctor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("directory: commit: %w", err)
	}
	return d, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, email, passwordHash, fullName, phone string, role Role) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO user_accounts (email, password_hash, full_name, phone, role)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, passwordHash, fullName, nullable(phone), role,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("directory: insert user: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Email, &d.Phone, &d.Specialization); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("directory: select doctor: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Phone, &p.DateOfBirth, &p.Gender); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("directory: select patient: %w", err)
	}
	return &p, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
