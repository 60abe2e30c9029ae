package directory

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole converts a wire value into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("directory: unknown role %q", raw)
}

// UserAccount is the login identity behind a doctor or patient.
type UserAccount struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone,omitempty"`
	Role         Role   `json:"role"`
}

// Doctor is a flattened doctor record with its owning user eagerly resolved.
type Doctor struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"userId"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// Patient is a flattened patient record with its owning user eagerly resolved.
type Patient struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender,omitempty"`
}

// RegisterPatient carries the fields needed to create a patient and its user.
type RegisterPatient struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	DateOfBirth  time.Time
	Gender       string
}

// RegisterDoctor carries the fields needed to create a doctor and its user.
type RegisterDoctor struct {
	Email          string
	PasswordHash   string
	FullName       string
	Phone          string
	Specialization string
}
