package directory

import "errors"

var (
	// ErrDoctorNotFound is returned when a doctor lookup misses
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrPatientNotFound is returned when a patient lookup misses
	ErrPatientNotFound = errors.New("patient not found")

	// ErrUserNotFound is returned when a user account lookup misses
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")
)
