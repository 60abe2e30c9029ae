package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an appointment lookup misses
	ErrNotFound = errors.New("appointment not found")

	// ErrMissingTime is returned when a booking omits start or end
	ErrMissingTime = errors.New("start and end time are required")

	// ErrInvalidTimeRange is returned when end is not strictly after start
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrNotOwner is returned when a doctor acts on an appointment that is not theirs
	ErrNotOwner = errors.New("appointment does not belong to this doctor")

	// ErrNotParticipant is returned when a cancel is attempted by someone
	// who is neither the booking patient nor the involved doctor
	ErrNotParticipant = errors.New("only the booking patient or involved doctor may cancel")

	// ErrIllegalTransition is returned when a status change is not legal
	// from the appointment's current state
	ErrIllegalTransition = errors.New("status transition not allowed from current state")
)

// ConflictError reports an overlapping active appointment for one party.
type ConflictError struct {
	Party string // "doctor" or "patient"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s has overlapping appointment", e.Party)
}

// IsConflict reports whether err represents a scheduling or authorization
// conflict that maps to a 409 at the boundary.
func IsConflict(err error) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrNotParticipant) ||
		errors.Is(err, ErrIllegalTransition)
}
