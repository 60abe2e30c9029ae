package appointments

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbook/clinic-scheduler/internal/directory"
	"github.com/clinicbook/clinic-scheduler/internal/notify"
	"github.com/clinicbook/clinic-scheduler/internal/observability/metrics"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.appointments")

// BookingRequest carries a patient's request for time with a doctor.
type BookingRequest struct {
	PatientID int64     `json:"patientId"`
	DoctorID  int64     `json:"doctorId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Notes     string    `json:"notes,omitempty"`
}

// Service implements booking, conflict resolution, the appointment state
// machine and availability on top of a Repository and the directory.
type Service struct {
	repo    Repository
	dir     directory.Repository
	events  notify.Publisher
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs the appointment service.
func NewService(repo Repository, dir directory.Repository, events notify.Publisher, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if dir == nil {
		panic("appointments: directory required")
	}
	if events == nil {
		events = notify.NoopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		dir:     dir,
		events:  events,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Book validates the request, checks both parties for overlapping active
// appointments and persists a new PENDING appointment. The overlap check and
// the insert are one atomic unit in the repository.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.doctor_id", req.DoctorID),
		attribute.Int64("clinic.patient_id", req.PatientID),
	)

	patient, err := s.dir.FindPatient(ctx, req.PatientID)
	if err != nil {
		s.metrics.ObserveBooking("not_found")
		return nil, err
	}
	doctor, err := s.dir.FindDoctor(ctx, req.DoctorID)
	if err != nil {
		s.metrics.ObserveBooking("not_found")
		return nil, err
	}

	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		s.metrics.ObserveBooking("invalid")
		return nil, ErrMissingTime
	}
	if !req.EndTime.After(req.StartTime) {
		s.metrics.ObserveBooking("invalid")
		return nil, ErrInvalidTimeRange
	}

	appt, err := s.repo.CreateIfFree(ctx, &Appointment{
		DoctorID:    doctor.ID,
		PatientID:   patient.ID,
		DoctorName:  doctor.FullName,
		PatientName: patient.FullName,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      StatusPending,
		Notes:       req.Notes,
	})
	if err != nil {
		if IsConflict(err) {
			s.metrics.ObserveBooking("conflict")
		} else {
			s.metrics.ObserveBooking("error")
			span.RecordError(err)
		}
		return nil, err
	}

	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", doctor.ID,
		"patient_id", patient.ID,
	)
	s.publish(ctx, notify.EventBooked, appt)
	return appt, nil
}

// Get returns a single appointment by id.
func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

// ListByDoctor returns a doctor's appointments; nil bounds mean unbounded.
func (s *Service) ListByDoctor(ctx context.Context, doctorID int64, from, to *time.Time) ([]*Appointment, error) {
	if _, err := s.dir.FindDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, doctorID, from, to)
}

// ListByPatient returns a patient's appointments; nil bounds mean unbounded.
func (s *Service) ListByPatient(ctx context.Context, patientID int64, from, to *time.Time) ([]*Appointment, error) {
	if _, err := s.dir.FindPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID, from, to)
}

// All returns every appointment; used by the admin schedule view.
func (s *Service) All(ctx context.Context) ([]*Appointment, error) {
	return s.repo.ListAll(ctx)
}

// Accept moves a PENDING appointment to SCHEDULED. Only the owning doctor,
// identified by email, may accept.
func (s *Service) Accept(ctx context.Context, appointmentID int64, doctorEmail string) (*Appointment, error) {
	return s.doctorTransition(ctx, "accept", appointmentID, doctorEmail, StatusScheduled, notify.EventAccepted)
}

// Reject moves a PENDING appointment to CANCELLED. Only the owning doctor
// may reject.
func (s *Service) Reject(ctx context.Context, appointmentID int64, doctorEmail string) (*Appointment, error) {
	return s.doctorTransition(ctx, "reject", appointmentID, doctorEmail, StatusCancelled, notify.EventRejected)
}

// Complete moves a SCHEDULED appointment to COMPLETED. Only the owning
// doctor may complete.
func (s *Service) Complete(ctx context.Context, appointmentID int64, doctorEmail string) (*Appointment, error) {
	return s.doctorTransition(ctx, "complete", appointmentID, doctorEmail, StatusCompleted, notify.EventCompleted)
}

func (s *Service) doctorTransition(ctx context.Context, action string, appointmentID int64, doctorEmail string, to Status, eventType string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments."+action)
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.appointment_id", appointmentID))

	doctor, err := s.dir.FindDoctorByEmail(ctx, doctorEmail)
	if err != nil {
		s.metrics.ObserveTransition(action, "not_found")
		return nil, err
	}
	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		s.metrics.ObserveTransition(action, "not_found")
		return nil, err
	}
	if appt.DoctorID != doctor.ID {
		s.metrics.ObserveTransition(action, "forbidden")
		return nil, ErrNotOwner
	}

	updated, err := s.repo.Transition(ctx, appointmentID, to)
	if err != nil {
		s.metrics.ObserveTransition(action, "illegal")
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTransition(action, "ok")
	s.logger.Info("appointment status changed",
		"appointment_id", updated.ID,
		"action", action,
		"status", updated.Status,
		"doctor_id", doctor.ID,
	)
	s.publish(ctx, eventType, updated)
	return updated, nil
}

// Cancel moves an appointment to CANCELLED. The actor must be the booking
// patient, the involved doctor, or an administrator.
func (s *Service) Cancel(ctx context.Context, appointmentID int64, actorEmail string, actorRole directory.Role) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.appointment_id", appointmentID))

	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		s.metrics.ObserveTransition("cancel", "not_found")
		return nil, err
	}

	if err := s.authorizeCancel(ctx, appt, actorEmail, actorRole); err != nil {
		s.metrics.ObserveTransition("cancel", "forbidden")
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, appointmentID, StatusCancelled)
	if err != nil {
		s.metrics.ObserveTransition("cancel", "illegal")
		return nil, err
	}

	s.metrics.ObserveTransition("cancel", "ok")
	s.logger.Info("appointment cancelled", "appointment_id", updated.ID, "actor", actorEmail)
	s.publish(ctx, notify.EventCancelled, updated)
	return updated, nil
}

func (s *Service) authorizeCancel(ctx context.Context, appt *Appointment, actorEmail string, actorRole directory.Role) error {
	switch actorRole {
	case directory.RoleAdmin:
		return nil
	case directory.RoleDoctor:
		doctor, err := s.dir.FindDoctorByEmail(ctx, actorEmail)
		if err != nil {
			return err
		}
		if appt.DoctorID != doctor.ID {
			return ErrNotParticipant
		}
		return nil
	case directory.RolePatient:
		patient, err := s.dir.FindPatientByEmail(ctx, actorEmail)
		if err != nil {
			return err
		}
		if appt.PatientID != patient.ID {
			return ErrNotParticipant
		}
		return nil
	}
	return ErrNotParticipant
}

// PendingForDoctor lists PENDING appointments for the doctor owning the email.
func (s *Service) PendingForDoctor(ctx context.Context, doctorEmail string) ([]*Appointment, error) {
	return s.doctorStatusView(ctx, doctorEmail, StatusPending)
}

// ScheduledForDoctor lists SCHEDULED appointments for the doctor owning the email.
func (s *Service) ScheduledForDoctor(ctx context.Context, doctorEmail string) ([]*Appointment, error) {
	return s.doctorStatusView(ctx, doctorEmail, StatusScheduled)
}

// CompletedForDoctor lists COMPLETED appointments for the doctor owning the email.
func (s *Service) CompletedForDoctor(ctx context.Context, doctorEmail string) ([]*Appointment, error) {
	return s.doctorStatusView(ctx, doctorEmail, StatusCompleted)
}

// TodayForDoctor lists today's SCHEDULED appointments in the server-local day
// window.
func (s *Service) TodayForDoctor(ctx context.Context, doctorEmail string) ([]*Appointment, error) {
	doctor, err := s.dir.FindDoctorByEmail(ctx, doctorEmail)
	if err != nil {
		return nil, err
	}
	from, to := s.todayWindow()
	return s.repo.ListByDoctorWindowStatus(ctx, doctor.ID, from, to, StatusScheduled)
}

// HistoryForPatient lists all appointments for the patient owning the email.
func (s *Service) HistoryForPatient(ctx context.Context, patientEmail string) ([]*Appointment, error) {
	patient, err := s.dir.FindPatientByEmail(ctx, patientEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patient.ID, nil, nil)
}

func (s *Service) doctorStatusView(ctx context.Context, doctorEmail string, status Status) ([]*Appointment, error) {
	doctor, err := s.dir.FindDoctorByEmail(ctx, doctorEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByDoctorStatus(ctx, doctor.ID, status)
}

// todayWindow returns the start of today and start of tomorrow in the
// server's local offset.
func (s *Service) todayWindow() (time.Time, time.Time) {
	now := s.now()
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) publish(ctx context.Context, eventType string, appt *Appointment) {
	ev := notify.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Status:        string(appt.Status),
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		// Notification fan-out is best effort; the booking already committed.
		s.logger.Warn("failed to publish appointment event", "error", err, "type", eventType)
	}
}
