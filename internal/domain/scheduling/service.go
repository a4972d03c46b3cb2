package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/lock"
	"github.com/clinic/clinic/internal/platform/payment"
)

// DoctorFinder is satisfied by doctor.Service.
type DoctorFinder interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// TxRunner is satisfied by db.TxManager.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultLockTTL = 10 * time.Second

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorFinder
	tx           TxRunner
	policy       CancellationPolicy
	loc          *time.Location
	now          func() time.Time

	locker    lock.Locker
	lockTTL   time.Duration
	publisher events.Publisher
	payments  payment.Gateway
	logger    zerolog.Logger
}

// NewService builds the booking service. loc is the clinic's time zone:
// calendar days and slot wall-clock times are computed in it.
func NewService(appts AppointmentRepository, doctors DoctorFinder, tx TxRunner, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		appointments: appts,
		doctors:      doctors,
		tx:           tx,
		policy:       DefaultCancellationPolicy(),
		loc:          loc,
		now:          time.Now,
		lockTTL:      defaultLockTTL,
		publisher:    events.NopPublisher{},
		payments:     payment.DisabledGateway{},
		logger:       zerolog.Nop(),
	}
}

// SetLocker adds a distributed per-slot lock in front of the booking
// transaction.
func (s *Service) SetLocker(l lock.Locker, ttl time.Duration) {
	s.locker = l
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) SetPaymentGateway(g payment.Gateway) { s.payments = g }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetCancellationPolicy(p CancellationPolicy) { s.policy = p }

// Location is the time zone dates without an offset are read in.
func (s *Service) Location() *time.Location { return s.loc }

// -- Availability --

// AvailableSlots returns the doctor's free slots on the calendar day of date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	day, err := ValidateTargetDate(date, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.freeSlots(ctx, doc, day)
}

func (s *Service) freeSlots(ctx context.Context, doc *doctor.Doctor, day time.Time) ([]TimeSlot, error) {
	slots, err := GenerateSlots(doc.AvailabilitySchedule, day, doc.AppointmentDuration)
	if err != nil {
		return nil, err
	}
	from, to := bookingWindow(day, slots)
	booked, err := s.appointments.ListByDoctorAndRange(ctx, doc.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}
	return FilterBooked(slots, booked), nil
}

// -- Booking --

func slotLockKey(doctorID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("booking:%s:%d", doctorID, start.UnixMilli())
}

// BookAppointment recomputes availability for the schedule day the requested
// start belongs to and creates the appointment only if that start is still
// free. The check and
// the insert share one serializable transaction, and the store's unique
// index on live (doctor, start) pairs rejects any writer that slips past.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	day, err := ValidateTargetDate(SlotDay(req.AppointmentDate, s.loc), s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := slotLockKey(req.DoctorID, req.AppointmentDate)
		token, err := s.locker.TryLock(ctx, key, s.lockTTL)
		switch {
		case errors.Is(err, lock.ErrNotAcquired):
			return nil, ErrSlotUnavailable
		case err != nil:
			s.logger.Warn().Err(err).Str("key", key).Msg("booking lock unavailable, relying on database constraint")
		default:
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					s.logger.Warn().Err(err).Str("key", key).Msg("release booking lock")
				}
			}()
		}
	}

	var appt *Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.doctors.GetDoctor(ctx, req.DoctorID)
		if err != nil {
			return err
		}
		free, err := s.freeSlots(ctx, doc, day)
		if err != nil {
			return err
		}
		if err := ValidateSlot(req.AppointmentDate, free); err != nil {
			return err
		}
		appt = &Appointment{
			DoctorID:        doc.ID,
			PatientID:       req.PatientID,
			AppointmentDate: req.AppointmentDate.UTC(),
			Reason:          req.Reason,
			Notes:           req.Notes,
			Status:          StatusPending,
			PaymentAmount:   doc.AppointmentFee,
			PaymentStatus:   PaymentPending,
		}
		return s.appointments.Create(ctx, appt)
	})
	if db.IsUniqueViolation(err) || db.IsSerializationFailure(err) {
		s.logger.Info().Err(err).Str("doctor_id", req.DoctorID.String()).
			Time("appointment_date", req.AppointmentDate).Msg("concurrent booking rejected")
		return nil, ErrSlotUnavailable
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", appt.ID.String()).Str("doctor_id", appt.DoctorID.String()).
		Str("patient_id", appt.PatientID.String()).Time("appointment_date", appt.AppointmentDate).
		Msg("appointment booked")
	s.publish(ctx, events.TypeAppointmentBooked, appt)
	return appt, nil
}

// -- Cancellation --

// CancelAppointment applies the cancellation policy for patientID and, when
// it passes, stores the cancellation before returning the refund summary.
func (s *Service) CancelAppointment(ctx context.Context, id, patientID uuid.UUID) (*RefundSummary, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := s.now()
	if err := s.policy.Check(appt, patientID, now); err != nil {
		return nil, err
	}

	summary := s.policy.Apply(appt, now)
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger.Info().Str("appointment_id", appt.ID.String()).Int64("refund_amount", summary.Amount).
		Msg("appointment cancelled")
	s.publish(ctx, events.TypeAppointmentCancelled, appt)
	return &summary, nil
}

// -- Listings --

func (s *Service) UpcomingAppointments(ctx context.Context, party Party, ownerID uuid.UUID) ([]*Appointment, error) {
	return s.appointments.ListUpcoming(ctx, party, ownerID, s.now())
}

func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// GetDoctorAppointment hides other doctors' appointments as not found.
func (s *Service) GetDoctorAppointment(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrNotFound
	}
	return appt, nil
}

// -- Payments --

// CreateCheckoutSession starts payment of the patient's own appointment.
func (s *Service) CreateCheckoutSession(ctx context.Context, id, patientID uuid.UUID, successURL, cancelURL string) (*payment.CheckoutSession, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, ErrForbidden
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if appt.PaymentStatus == PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	doc, err := s.doctors.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	return s.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Reference:   appt.ID.String(),
		Description: doc.FullName + "'s Appointment",
		Amount:      appt.PaymentAmount,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
	})
}

// RecordPayment stores the provider's verdict. A paid pending appointment
// becomes scheduled.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Appointment, error) {
	if status != PaymentPaid && status != PaymentFailed {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, status)
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	appt.PaymentStatus = status
	if status == PaymentPaid && appt.Status == StatusPending {
		appt.Status = StatusScheduled
	}
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger.Info().Str("appointment_id", appt.ID.String()).Str("payment_status", string(status)).
		Msg("payment recorded")
	s.publish(ctx, events.TypeAppointmentPaymentUpdated, appt)
	return appt, nil
}

// -- Administration --

func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, limit, offset)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateStatus is the administrative override; it skips the cancellation
// policy.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	appt.Status = status
	if err := s.appointments.Update(ctx, appt); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return appt, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

// publish never fails the caller: the appointment is already committed.
func (s *Service) publish(ctx context.Context, typ string, a *Appointment) {
	evt := events.Event{
		ID:              uuid.NewString(),
		Type:            typ,
		AppointmentID:   a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		AppointmentDate: a.AppointmentDate,
		Status:          string(a.Status),
		PaymentStatus:   string(a.PaymentStatus),
		OccurredAt:      s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Str("appointment_id", a.ID.String()).Msg("publish event")
	}
}
