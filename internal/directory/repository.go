package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Repository defines doctor/patient directory storage. Lookups are read-only
// value fetches; Create* exist for registration and test seeding.
type Repository interface {
	FindDoctor(ctx context.Context, id int64) (*Doctor, error)
	FindPatient(ctx context.Context, id int64) (*Patient, error)
	FindDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	FindPatientByEmail(ctx context.Context, email string) (*Patient, error)
	FindUserByEmail(ctx context.Context, email string) (*UserAccount, error)
	ListDoctors(ctx context.Context) ([]*Doctor, error)
	CreatePatient(ctx context.Context, req *RegisterPatient) (*Patient, error)
	CreateDoctor(ctx context.Context, req *RegisterDoctor) (*Doctor, error)
}

// InMemoryRepository is an in-memory Repository for tests and local runs
// without a database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	users    map[int64]*UserAccount
	doctors  map[int64]*Doctor
	patients map[int64]*Patient
	nextID   int64
}

// NewInMemoryRepository creates an empty in-memory directory.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:    make(map[int64]*UserAccount),
		doctors:  make(map[int64]*Doctor),
		patients: make(map[int64]*Patient),
	}
}

func (r *InMemoryRepository) FindDoctor(ctx context.Context, id int64) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copy := *d
	return &copy, nil
}

func (r *InMemoryRepository) FindPatient(ctx context.Context, id int64) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copy := *p
	return &copy, nil
}

func (r *InMemoryRepository) FindDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.doctors {
		if strings.EqualFold(d.Email, email) {
			copy := *d
			return &copy, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *InMemoryRepository) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if strings.EqualFold(p.Email, email) {
			copy := *p
			return &copy, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *InMemoryRepository) FindUserByEmail(ctx context.Context, email string) (*UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryRepository) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		copy := *d
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) CreatePatient(ctx context.Context, req *RegisterPatient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailExists(req.Email) {
		return nil, ErrEmailTaken
	}
	user := &UserAccount{
		ID:           r.allocID(),
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         RolePatient,
	}
	r.users[user.ID] = user
	p := &Patient{
		ID:          r.allocID(),
		UserID:      user.ID,
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	}
	r.patients[p.ID] = p
	copy := *p
	return &copy, nil
}

func (r *InMemoryRepository) CreateDoctor(ctx context.Context, req *RegisterDoctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailExists(req.Email) {
		return nil, ErrEmailTaken
	}
	user := &UserAccount{
		ID:           r.allocID(),
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         RoleDoctor,
	}
	r.users[user.ID] = user
	d := &Doctor{
		ID:             r.allocID(),
		UserID:         user.ID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
	}
	r.doctors[d.ID] = d
	copy := *d
	return &copy, nil
}

func (r *InMemoryRepository) emailExists(email string) bool {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) allocID() int64 {
	r.nextID++
	return r.nextID
}
