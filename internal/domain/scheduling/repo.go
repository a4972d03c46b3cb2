package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetByID returns ErrNotFound when no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update writes every mutable field and returns ErrNotFound when no row
	// was changed.
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctorAndRange returns the doctor's appointments with from <=
	// appointmentDate <= to, whatever their status.
	ListByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// ListUpcoming returns non-cancelled appointments after the given time,
	// earliest first.
	ListUpcoming(ctx context.Context, party Party, ownerID uuid.UUID, after time.Time) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}
