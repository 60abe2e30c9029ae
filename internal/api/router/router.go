package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clinicbook/clinic-scheduler/internal/appointments"
	"github.com/clinicbook/clinic-scheduler/internal/auth"
	"github.com/clinicbook/clinic-scheduler/internal/directory"
	httpmiddleware "github.com/clinicbook/clinic-scheduler/internal/http/middleware"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AuthHandler         *auth.Handler
	AppointmentsHandler *appointments.Handler
	DirectoryHandler    *directory.Handler
	MetricsHandler      http.Handler
	JWTSecret           string
	RateLimiter         *httpmiddleware.RateLimiter
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/api/auth", func(ar chi.Router) {
			if cfg.RateLimiter != nil {
				ar.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			ar.Post("/register/patient", cfg.AuthHandler.RegisterPatient)
			ar.Post("/register/doctor", cfg.AuthHandler.RegisterDoctor)
			ar.Post("/login", cfg.AuthHandler.Login)
		})
		public.Get("/api/doctors", cfg.DirectoryHandler.ListDoctors)
		public.Get("/api/doctors/{id}", cfg.DirectoryHandler.GetDoctor)
		public.Get("/api/doctors/{id}/available-slots", cfg.AppointmentsHandler.AvailableSlots)
	})

	// Authenticated endpoints
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.RequireAuth(cfg.JWTSecret))

		private.Route("/api/appointments", func(ar chi.Router) {
			ar.Post("/book", cfg.AppointmentsHandler.Book)
			ar.Get("/{id}", cfg.AppointmentsHandler.Get)
			ar.Get("/doctor/{doctorID}", cfg.AppointmentsHandler.ListByDoctor)
			ar.Get("/patient/{patientID}", cfg.AppointmentsHandler.ListByPatient)
			ar.Post("/{id}/cancel", cfg.AppointmentsHandler.Cancel)
		})

		private.Route("/api/doctor/appointments", func(dr chi.Router) {
			dr.Use(httpmiddleware.RequireRole(directory.RoleDoctor))
			dr.Put("/{id}/accept", cfg.AppointmentsHandler.Accept)
			dr.Put("/{id}/reject", cfg.AppointmentsHandler.Reject)
			dr.Put("/{id}/complete", cfg.AppointmentsHandler.Complete)
			dr.Get("/pending", cfg.AppointmentsHandler.PendingForDoctor)
			dr.Get("/scheduled", cfg.AppointmentsHandler.ScheduledForDoctor)
			dr.Get("/completed", cfg.AppointmentsHandler.CompletedForDoctor)
			dr.Get("/today", cfg.AppointmentsHandler.TodayForDoctor)
		})

		private.With(httpmiddleware.RequireRole(directory.RolePatient)).
			Get("/api/patient/appointments/history", cfg.AppointmentsHandler.HistoryForPatient)

		private.With(httpmiddleware.RequireRole(directory.RoleAdmin)).
			Get("/api/admin/appointments", cfg.AppointmentsHandler.ListAll)
	})

	return r
}
