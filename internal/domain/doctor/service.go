package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	doctors Repository
}

func NewService(repo Repository) *Service {
	return &Service{doctors: repo}
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.FullName = strings.TrimSpace(d.FullName)
	if d.FullName == "" {
		return fmt.Errorf("%w: fullName is required", ErrInvalidDoctor)
	}
	if d.AppointmentFee < 0 {
		return fmt.Errorf("%w: appointmentFee must not be negative", ErrInvalidDoctor)
	}
	if err := validateAvailability(d.AvailabilitySchedule, d.AppointmentDuration); err != nil {
		return err
	}
	return s.doctors.Create(ctx, d)
}

// GetDoctor is the doctor lookup used by the booking engine.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// UpdateAvailability replaces the weekly schedule and slot duration.
func (s *Service) UpdateAvailability(ctx context.Context, id uuid.UUID, schedule AvailabilitySchedule, duration int) (*Doctor, error) {
	if err := validateAvailability(schedule, duration); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.AvailabilitySchedule = schedule
	d.AppointmentDuration = duration
	if err := s.doctors.UpdateAvailability(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func validateAvailability(schedule AvailabilitySchedule, duration int) error {
	if duration <= 0 {
		return fmt.Errorf("%w: appointmentDuration must be positive", ErrInvalidSchedule)
	}
	return schedule.Validate()
}
