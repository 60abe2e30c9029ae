package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepositoryRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	doc, err := repo.CreateDoctor(ctx, &RegisterDoctor{
		Email:          "doc@clinic.example",
		PasswordHash:   "hash",
		FullName:       "Dr. Gregory House",
		Specialization: "Diagnostics",
	})
	require.NoError(t, err)
	require.NotZero(t, doc.ID)

	pat, err := repo.CreatePatient(ctx, &RegisterPatient{
		Email:        "pat@clinic.example",
		PasswordHash: "hash",
		FullName:     "Lisa Cuddy",
		DateOfBirth:  time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC),
		Gender:       "female",
	})
	require.NoError(t, err)

	got, err := repo.FindDoctor(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Gregory House", got.FullName)

	byEmail, err := repo.FindDoctorByEmail(ctx, "DOC@clinic.example")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byEmail.ID)

	gotPat, err := repo.FindPatientByEmail(ctx, "pat@clinic.example")
	require.NoError(t, err)
	assert.Equal(t, pat.ID, gotPat.ID)

	user, err := repo.FindUserByEmail(ctx, "doc@clinic.example")
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, user.Role)

	doctors, err := repo.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Len(t, doctors, 1)
}

func TestInMemoryRepositoryMisses(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	_, err := repo.FindDoctor(ctx, 99)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = repo.FindPatient(ctx, 99)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	_, err = repo.FindUserByEmail(ctx, "missing@clinic.example")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInMemoryRepositoryRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	_, err := repo.CreateDoctor(ctx, &RegisterDoctor{Email: "dup@clinic.example", FullName: "A"})
	require.NoError(t, err)

	_, err = repo.CreatePatient(ctx, &RegisterPatient{Email: "dup@clinic.example", FullName: "B"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"PATIENT", "DOCTOR", "ADMIN"} {
		role, err := ParseRole(raw)
		require.NoError(t, err)
		assert.Equal(t, Role(raw), role)
	}

	_, err := ParseRole("NURSE")
	assert.Error(t, err)
}
