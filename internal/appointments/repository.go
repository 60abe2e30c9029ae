package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines appointment storage. CreateIfFree must treat the
// overlap check and the insert as one atomic unit so concurrent bookings
// for the same window cannot both succeed. Transition must apply the
// status change only from a legal source state.
type Repository interface {
	CreateIfFree(ctx context.Context, appt *Appointment) (*Appointment, error)
	Get(ctx context.Context, id int64) (*Appointment, error)
	Transition(ctx context.Context, id int64, to Status) (*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID int64, from, to *time.Time) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID int64, from, to *time.Time) ([]*Appointment, error)
	ListByDoctorStatus(ctx context.Context, doctorID int64, status Status) ([]*Appointment, error)
	ListByDoctorWindowStatus(ctx context.Context, doctorID int64, from, to time.Time, status Status) ([]*Appointment, error)
	ListAll(ctx context.Context) ([]*Appointment, error)
	DoctorOverlapExists(ctx context.Context, doctorID int64, start, end time.Time) (bool, error)
	PatientOverlapExists(ctx context.Context, patientID int64, start, end time.Time) (bool, error)
}

// overlaps applies the inclusive boundary test: windows that merely touch at
// an endpoint count as conflicting. Cancelled appointments never conflict.
func overlaps(a *Appointment, start, end time.Time) bool {
	if a.Status == StatusCancelled {
		return false
	}
	return !a.StartTime.After(end) && !a.EndTime.Before(start)
}

// InMemoryRepository keeps appointments in memory. Used by tests and by
// local runs without a database.
type InMemoryRepository struct {
	mu     sync.Mutex
	byID   map[int64]*Appointment
	nextID int64
}

// NewInMemoryRepository creates an empty in-memory appointment store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: make(map[int64]*Appointment)}
}

// CreateIfFree checks both parties and inserts under one lock, making the
// check-then-insert atomic.
func (r *InMemoryRepository) CreateIfFree(ctx context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.DoctorID == appt.DoctorID && overlaps(existing, appt.StartTime, appt.EndTime) {
			return nil, &ConflictError{Party: "doctor"}
		}
	}
	for _, existing := range r.byID {
		if existing.PatientID == appt.PatientID && overlaps(existing, appt.StartTime, appt.EndTime) {
			return nil, &ConflictError{Party: "patient"}
		}
	}

	r.nextID++
	now := time.Now().UTC()
	stored := *appt
	stored.ID = r.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.byID[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

// Transition applies a compare-and-swap on status so racing transitions
// resolve deterministically.
func (r *InMemoryRepository) Transition(ctx context.Context, id int64, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	allowed := false
	for _, src := range sourcesFor(to) {
		if a.Status == src {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrIllegalTransition
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	out := *a
	return &out, nil
}

func (r *InMemoryRepository) ListByDoctor(ctx context.Context, doctorID int64, from, to *time.Time) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool {
		return a.DoctorID == doctorID && inWindow(a, from, to)
	}), nil
}

func (r *InMemoryRepository) ListByPatient(ctx context.Context, patientID int64, from, to *time.Time) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool {
		return a.PatientID == patientID && inWindow(a, from, to)
	}), nil
}

func (r *InMemoryRepository) ListByDoctorStatus(ctx context.Context, doctorID int64, status Status) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Status == status
	}), nil
}

func (r *InMemoryRepository) ListByDoctorWindowStatus(ctx context.Context, doctorID int64, from, to time.Time, status Status) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Status == status &&
			!a.StartTime.Before(from) && a.StartTime.Before(to)
	}), nil
}

func (r *InMemoryRepository) ListAll(ctx context.Context) ([]*Appointment, error) {
	return r.list(func(*Appointment) bool { return true }), nil
}

func (r *InMemoryRepository) DoctorOverlapExists(ctx context.Context, doctorID int64, start, end time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.DoctorID == doctorID && overlaps(a, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) PatientOverlapExists(ctx context.Context, patientID int64, start, end time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.PatientID == patientID && overlaps(a, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) list(keep func(*Appointment) bool) []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.byID {
		if keep(a) {
			copy := *a
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func inWindow(a *Appointment, from, to *time.Time) bool {
	if from != nil && a.StartTime.Before(*from) {
		return false
	}
	if to != nil && a.StartTime.After(*to) {
		return false
	}
	return true
}
