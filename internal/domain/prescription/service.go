package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
)

// AppointmentFinder is the part of the booking service prescriptions need.
type AppointmentFinder interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type IssueRequest struct {
	AppointmentID uuid.UUID
	Medications   []Medication
	Diagnosis     string
	Notes         string
	FollowUpDate  *time.Time
}

type Service struct {
	prescriptions Repository
	appointments  AppointmentFinder
	now           func() time.Time
	logger        zerolog.Logger
}

func NewService(repo Repository, appts AppointmentFinder) *Service {
	return &Service{prescriptions: repo, appointments: appts, now: time.Now, logger: zerolog.Nop()}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// Issue creates a prescription for the patient of one of doctorID's
// appointments. Cancelled appointments cannot carry a prescription.
func (s *Service) Issue(ctx context.Context, doctorID uuid.UUID, req IssueRequest) (*Prescription, error) {
	now := s.now()
	if err := validateIssue(req, now); err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetAppointment(ctx, req.AppointmentID)
	if errors.Is(err, scheduling.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, fmt.Errorf("%w: appointment belongs to another doctor", ErrForbidden)
	}
	if appt.Status == scheduling.StatusCancelled {
		return nil, fmt.Errorf("%w: appointment is cancelled", ErrInvalidPrescription)
	}

	meds := make([]Medication, len(req.Medications))
	for i, m := range req.Medications {
		if strings.TrimSpace(m.Instruction) == "" {
			m.Instruction = defaultInstruction
		}
		meds[i] = m
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = defaultNotes
	}
	p := &Prescription{
		PatientID:        appt.PatientID,
		DoctorID:         doctorID,
		AppointmentID:    appt.ID,
		PrescriptionDate: now.UTC(),
		Medications:      meds,
		Diagnosis:        strings.TrimSpace(req.Diagnosis),
		Notes:            notes,
		Status:           StatusIssued,
		FollowUpDate:     req.FollowUpDate,
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	s.logger.Info().Str("prescription_id", p.ID.String()).Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).Int("medications", len(meds)).Msg("prescription issued")
	return p, nil
}

func validateIssue(req IssueRequest, now time.Time) error {
	if strings.TrimSpace(req.Diagnosis) == "" {
		return fmt.Errorf("%w: diagnosis is required", ErrInvalidPrescription)
	}
	if len(req.Medications) == 0 {
		return fmt.Errorf("%w: at least one medication is required", ErrInvalidPrescription)
	}
	for i, m := range req.Medications {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Dosage) == "" ||
			strings.TrimSpace(m.Frequency) == "" || strings.TrimSpace(m.Duration) == "" {
			return fmt.Errorf("%w: medication %d needs name, dosage, frequency and duration", ErrInvalidPrescription, i)
		}
	}
	if req.FollowUpDate != nil && !req.FollowUpDate.After(now) {
		return fmt.Errorf("%w: followUpDate must be in the future", ErrInvalidPrescription)
	}
	return nil
}

// Get returns a prescription the caller may see: its doctor, its patient,
// or an admin.
func (s *Service) Get(ctx context.Context, who auth.Identity, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(p, who) {
		return nil, ErrForbidden
	}
	return p, nil
}

func visibleTo(p *Prescription, who auth.Identity) bool {
	switch who.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return p.DoctorID == who.ID
	case auth.RolePatient:
		return p.PatientID == who.ID
	}
	return false
}

// List scopes f to the caller: doctors see what they issued, patients what
// they were issued. Admin filters pass through.
func (s *Service) List(ctx context.Context, who auth.Identity, f Filter, limit, offset int) ([]*Prescription, int, error) {
	id := who.ID
	switch who.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		f.DoctorID = &id
	case auth.RolePatient:
		f.PatientID = &id
	default:
		return nil, 0, ErrForbidden
	}
	return s.prescriptions.List(ctx, f, limit, offset)
}

// UpdateStatus moves an issued prescription to revoked or completed. Only
// the issuing doctor may do so.
func (s *Service) UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, status Status) (*Prescription, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPrescription, status)
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	if !p.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, status)
	}
	p.Status = status
	if err := s.prescriptions.UpdateStatus(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("prescription_id", p.ID.String()).Str("status", string(status)).Msg("prescription status changed")
	return p, nil
}
