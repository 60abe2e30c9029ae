package appointments

import (
	"fmt"
	"time"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("appointments: unknown status %q", raw)
}

// transitionSources maps a target status to the states it may be reached from.
// PENDING is initial only and never a target.
var transitionSources = map[Status][]Status{
	StatusScheduled: {StatusPending},
	StatusCompleted: {StatusScheduled},
	StatusCancelled: {StatusPending, StatusScheduled},
}

// sourcesFor returns the legal source states for reaching target.
func sourcesFor(target Status) []Status {
	return transitionSources[target]
}

// Appointment is the central entity: one doctor, one patient, a half-open
// time range and a lifecycle status. Doctor and patient references are
// immutable after creation.
type Appointment struct {
	ID          int64     `json:"id"`
	DoctorID    int64     `json:"doctorId"`
	PatientID   int64     `json:"patientId"`
	DoctorName  string    `json:"doctorName,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// TimeSlot is a derived availability window. Computed fresh on every query,
// never persisted.
type TimeSlot struct {
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Available bool      `json:"available"`
}
