package prescription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("prescription not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidPrescription = errors.New("invalid prescription")
	ErrForbidden           = errors.New("prescription is not visible to the caller")
	ErrInvalidTransition   = errors.New("invalid prescription status change")
)

type Status string

const (
	StatusIssued    Status = "issued"
	StatusRevoked   Status = "revoked"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIssued, StatusRevoked, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Revoked and completed
// are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusIssued && (next == StatusRevoked || next == StatusCompleted)
}

const (
	defaultInstruction = "No specific instructions"
	defaultNotes       = "No additional notes"
)

type Medication struct {
	Name        string `json:"name" validate:"required,max=200"`
	Dosage      string `json:"dosage" validate:"required,max=200"`
	Frequency   string `json:"frequency" validate:"required,max=200"`
	Duration    string `json:"duration" validate:"required,max=200"`
	Instruction string `json:"instruction" validate:"max=1000"`
}

// Prescription is issued by the doctor of an appointment to its patient.
// Medications are stored as a JSONB array.
type Prescription struct {
	ID               uuid.UUID    `json:"id"`
	PatientID        uuid.UUID    `json:"patient"`
	DoctorID         uuid.UUID    `json:"doctor"`
	AppointmentID    uuid.UUID    `json:"appointment"`
	PrescriptionDate time.Time    `json:"prescriptionDate"`
	Medications      []Medication `json:"medications"`
	Diagnosis        string       `json:"diagnosis"`
	Notes            string       `json:"notes"`
	Status           Status       `json:"status"`
	FollowUpDate     *time.Time   `json:"followUpDate,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Filter narrows a listing. Nil fields match everything.
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}
