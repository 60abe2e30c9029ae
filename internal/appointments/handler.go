package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicbook/clinic-scheduler/internal/directory"
	"github.com/clinicbook/clinic-scheduler/internal/http/middleware"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

// Handler handles HTTP requests for appointments
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Book handles POST /api/appointments/book
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /api/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// ListByDoctor handles GET /api/appointments/doctor/{doctorID}
func (h *Handler) ListByDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "doctorID")
	if !ok {
		return
	}
	from, to, ok := h.queryWindow(w, r)
	if !ok {
		return
	}
	appts, err := h.service.ListByDoctor(r.Context(), id, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appts)
}

// ListByPatient handles GET /api/appointments/patient/{patientID}
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "patientID")
	if !ok {
		return
	}
	from, to, ok := h.queryWindow(w, r)
	if !ok {
		return
	}
	appts, err := h.service.ListByPatient(r.Context(), id, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appts)
}

// Cancel handles POST /api/appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	appt, err := h.service.Cancel(r.Context(), id, identity.Email, identity.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// Accept handles PUT /api/doctor/appointments/{id}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.doctorTransition(w, r, h.service.Accept)
}

// Reject handles PUT /api/doctor/appointments/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.doctorTransition(w, r, h.service.Reject)
}

// Complete handles PUT /api/doctor/appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.doctorTransition(w, r, h.service.Complete)
}

// PendingForDoctor handles GET /api/doctor/appointments/pending
func (h *Handler) PendingForDoctor(w http.ResponseWriter, r *http.Request) {
	h.doctorView(w, r, h.service.PendingForDoctor)
}

// ScheduledForDoctor handles GET /api/doctor/appointments/scheduled
func (h *Handler) ScheduledForDoctor(w http.ResponseWriter, r *http.Request) {
	h.doctorView(w, r, h.service.ScheduledForDoctor)
}

// CompletedForDoctor handles GET /api/doctor/appointments/completed
func (h *Handler) CompletedForDoctor(w http.ResponseWriter, r *http.Request) {
	h.doctorView(w, r, h.service.CompletedForDoctor)
}

// TodayForDoctor handles GET /api/doctor/appointments/today
func (h *Handler) TodayForDoctor(w http.ResponseWriter, r *http.Request) {
	h.doctorView(w, r, h.service.TodayForDoctor)
}

// HistoryForPatient handles GET /api/patient/appointments/history
func (h *Handler) HistoryForPatient(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	appts, err := h.service.HistoryForPatient(r.Context(), identity.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appts)
}

// AvailableSlots handles GET /api/doctors/{id}/available-slots
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	slots, err := h.service.AvailableSlots(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, slots)
}

// ListAll handles GET /api/admin/appointments
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	appts, err := h.service.All(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) doctorTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, string) (*Appointment, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	appt, err := apply(r.Context(), id, identity.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) doctorView(w http.ResponseWriter, r *http.Request, view func(context.Context, string) ([]*Appointment, error)) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	appts, err := view(r.Context(), identity.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) queryWindow(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	parse := func(name string) (*time.Time, bool) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, true
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, name+" must be RFC 3339", http.StatusBadRequest)
			return nil, false
		}
		return &t, true
	}
	from, ok := parse("from")
	if !ok {
		return nil, nil, false
	}
	to, ok := parse("to")
	if !ok {
		return nil, nil, false
	}
	return from, to, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, directory.ErrDoctorNotFound),
		errors.Is(err, directory.ErrPatientNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrMissingTime), errors.Is(err, ErrInvalidTimeRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("appointment request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
