package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/clinicbook/clinic-scheduler/internal/directory"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

// Handler handles registration and login.
type Handler struct {
	dir    directory.Repository
	logger *logging.Logger

	secret   string
	tokenTTL time.Duration

	// Administrative credential comes from configuration, never a literal
	// in logic.
	adminEmail    string
	adminPassHash string
}

// NewHandler creates an auth handler.
func NewHandler(dir directory.Repository, logger *logging.Logger, secret string, tokenTTL time.Duration, adminEmail, adminPassHash string) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		dir:           dir,
		logger:        logger,
		secret:        secret,
		tokenTTL:      tokenTTL,
		adminEmail:    adminEmail,
		adminPassHash: adminPassHash,
	}
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"fullName"`
	Phone          string `json:"phone"`
	DateOfBirth    string `json:"dateOfBirth"`
	Gender         string `json:"gender"`
	Specialization string `json:"specialization"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string         `json:"token"`
	Email    string         `json:"email"`
	Role     directory.Role `json:"role"`
	FullName string         `json:"fullName,omitempty"`
}

// RegisterPatient handles POST /api/auth/register/patient
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		http.Error(w, "email, password and fullName are required", http.StatusBadRequest)
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		http.Error(w, "dateOfBirth must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	patient, err := h.dir.CreatePatient(r.Context(), &directory.RegisterPatient{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Phone:        req.Phone,
		DateOfBirth:  dob,
		Gender:       req.Gender,
	})
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}

	h.logger.Info("registered patient", "patient_id", patient.ID)
	h.issueToken(w, http.StatusCreated, req.Email, directory.RolePatient, req.FullName)
}

// RegisterDoctor handles POST /api/auth/register/doctor
func (h *Handler) RegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		http.Error(w, "email, password and fullName are required", http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	doctor, err := h.dir.CreateDoctor(r.Context(), &directory.RegisterDoctor{
		Email:          req.Email,
		PasswordHash:   hash,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Specialization: req.Specialization,
	})
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}

	h.logger.Info("registered doctor", "doctor_id", doctor.ID)
	h.issueToken(w, http.StatusCreated, req.Email, directory.RoleDoctor, req.FullName)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if h.adminEmail != "" && req.Email == h.adminEmail {
		if !CheckPassword(h.adminPassHash, req.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.issueToken(w, http.StatusOK, req.Email, directory.RoleAdmin, "")
		return
	}

	user, err := h.dir.FindUserByEmail(r.Context(), req.Email)
	if err != nil || !CheckPassword(user.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.issueToken(w, http.StatusOK, user.Email, user.Role, user.FullName)
}

func (h *Handler) issueToken(w http.ResponseWriter, status int, email string, role directory.Role, fullName string) {
	token, err := MakeToken(email, role, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to sign token", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: token, Email: email, Role: role, FullName: fullName})
}

func (h *Handler) writeRegisterError(w http.ResponseWriter, err error) {
	if errors.Is(err, directory.ErrEmailTaken) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.logger.Error("registration failed", "error", err)
	http.Error(w, "registration failed", http.StatusInternalServerError)
}
