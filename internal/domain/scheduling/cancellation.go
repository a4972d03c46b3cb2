package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCancellationNotice = 24 * time.Hour
	DefaultRefundLeadTime     = 10 * 24 * time.Hour
)

type CancellationPolicy struct {
	// Notice is the minimum time between the request and the appointment.
	Notice time.Duration
	// RefundLeadTime is added to now for the expected refund completion.
	RefundLeadTime time.Duration
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{Notice: DefaultCancellationNotice, RefundLeadTime: DefaultRefundLeadTime}
}

// Check runs the cancellation rules in order and returns the first one
// that fails. A nil appointment means the lookup found nothing.
func (p CancellationPolicy) Check(a *Appointment, patientID uuid.UUID, now time.Time) error {
	if a == nil {
		return ErrNotFound
	}
	if a.PatientID != patientID {
		return ErrForbidden
	}
	if a.AppointmentDate.Sub(now) < p.Notice {
		return ErrCancellationWindowExpired
	}
	// Only reachable with a negative Notice, which lets a grace period run
	// into the appointment but never past its start.
	if a.AppointmentDate.Before(now) {
		return ErrPastAppointment
	}
	if a.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	return nil
}

// Apply marks a cancelled with a pending refund. It does not persist.
func (p CancellationPolicy) Apply(a *Appointment, now time.Time) RefundSummary {
	refund := RefundProcessing
	a.Status = StatusCancelled
	a.RefundStatus = &refund
	return RefundSummary{
		Amount:             a.PaymentAmount,
		Status:             RefundProcessing,
		ExpectedCompletion: now.Add(p.RefundLeadTime),
	}
}
