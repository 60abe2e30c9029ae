package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apptColumns = []string{
	"id", "doctor_id", "patient_id", "doctor_name", "patient_name",
	"start_time", "end_time", "status", "notes", "created_at", "updated_at",
}

func apptRow(id int64, status Status, start, end time.Time) *pgxmock.Rows {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(apptColumns).
		AddRow(id, int64(1), int64(2), "Dr. Cuddy", "Gregory House",
			start, end, status, "", now, now)
}

func TestPostgresCreateIfFree(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	now := time.Now().UTC()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(2), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(2), start, end, StatusPending, nil).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))
	mock.ExpectCommit()
	mock.ExpectRollback()

	appt, err := repo.CreateIfFree(context.Background(), &Appointment{
		DoctorID:  1,
		PatientID: 2,
		StartTime: start,
		EndTime:   end,
		Status:    StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), appt.ID)
	assert.Equal(t, StatusPending, appt.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateIfFreeDoctorBusy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = repo.CreateIfFree(context.Background(), &Appointment{
		DoctorID: 1, PatientID: 2, StartTime: start, EndTime: end, Status: StatusPending,
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "doctor", ce.Party)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateIfFreeExclusionBackstop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	// both checks pass, but a racing transaction already committed and the
	// exclusion constraint rejects the insert
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(2), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(2), start, end, StatusPending, nil).
		WillReturnError(&pgconn.PgError{Code: exclusionViolation})
	mock.ExpectRollback()

	_, err = repo.CreateIfFree(context.Background(), &Appointment{
		DoctorID: 1, PatientID: 2, StartTime: start, EndTime: end, Status: StatusPending,
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	mock.ExpectQuery("SELECT a.id, a.doctor_id").WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	_, err = repo.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(StatusScheduled, int64(42), []string{"PENDING"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(int64(42)).
		WillReturnRows(apptRow(42, StatusScheduled, start, start.Add(2*time.Hour)))

	appt, err := repo.Transition(context.Background(), 42, StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionIllegalSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// CAS matches no row; the follow-up read shows the appointment exists,
	// so the status was simply not a legal source
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(StatusCompleted, int64(42), []string{"SCHEDULED"}).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(int64(42)).
		WillReturnRows(apptRow(42, StatusCancelled, start, start.Add(time.Hour)))

	_, err = repo.Transition(context.Background(), 42, StatusCompleted)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(StatusCancelled, int64(404), []string{"PENDING", "SCHEDULED"}).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Transition(context.Background(), 404, StatusCancelled)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDoctorOverlapExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.DoctorOverlapExists(context.Background(), 1, start, end)
	require.NoError(t, err)
	assert.True(t, busy)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByDoctorWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	start := from.Add(10 * time.Hour)

	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(int64(1), from, to).
		WillReturnRows(apptRow(7, StatusPending, start, start.Add(2*time.Hour)))

	got, err := repo.ListByDoctor(context.Background(), 1, &from, &to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, "Dr. Cuddy", got[0].DoctorName)

	require.NoError(t, mock.ExpectationsWereMet())
}
