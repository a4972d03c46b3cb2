package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusScheduled: true, StatusCompleted: true, StatusCancelled: true,
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type RefundStatus string

const (
	RefundProcessing    RefundStatus = "processing"
	RefundPaid          RefundStatus = "paid"
	RefundNonRefundable RefundStatus = "non-refundable"
)

type Appointment struct {
	ID              uuid.UUID     `json:"id"`
	DoctorID        uuid.UUID     `json:"doctor"`
	PatientID       uuid.UUID     `json:"patient"`
	AppointmentDate time.Time     `json:"appointmentDate"`
	Reason          *string       `json:"reason,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	Status          Status        `json:"status"`
	PaymentAmount   int64         `json:"paymentAmount"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	RefundStatus    *RefundStatus `json:"refund,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// TimeSlot is derived from a doctor's hours and never stored. Two slots
// are the same slot when their start times match to the millisecond.
type TimeSlot struct {
	StartTime  time.Time `json:"startTime"`
	FinishTime time.Time `json:"finishTime"`
}

type RefundSummary struct {
	Amount             int64        `json:"amount"`
	Status             RefundStatus `json:"status"`
	ExpectedCompletion time.Time    `json:"expectedCompletion"`
}

type BookingRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	AppointmentDate time.Time
	Reason          *string
	Notes           *string
}

// Party selects whose appointments a listing returns.
type Party string

const (
	PartyDoctor  Party = "doctor"
	PartyPatient Party = "patient"
)
