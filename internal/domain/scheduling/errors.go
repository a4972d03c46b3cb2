package scheduling

import "errors"

var (
	ErrInvalidDate               = errors.New("please enter a valid date")
	ErrInvalidConfiguration      = errors.New("doctor availability is misconfigured")
	ErrDoctorUnavailable         = errors.New("doctor is not available on this day")
	ErrSlotUnavailable           = errors.New("this time slot is not available for booking")
	ErrNotFound                  = errors.New("appointment not found")
	ErrForbidden                 = errors.New("you do not have permission to access this appointment")
	ErrCancellationWindowExpired = errors.New("appointments must be cancelled at least 24 hours before the scheduled time")
	ErrPastAppointment           = errors.New("a past appointment cannot be cancelled")
	ErrAlreadyCancelled          = errors.New("the appointment is already cancelled")
	ErrPersistenceFailure        = errors.New("failed to save appointment")
	ErrInvalidStatus             = errors.New("invalid appointment status")
	ErrAlreadyPaid               = errors.New("the appointment is already paid")
)
