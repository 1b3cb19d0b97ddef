package domain

import (
	"errors"
	"time"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPending                  TripStatus = "PENDING"
	TripStatusApprovedPendingPayment   TripStatus = "APPROVED_PENDING_PAYMENT"
	TripStatusUpcoming                 TripStatus = "UPCOMING"
	TripStatusAwaitingDriverAcceptance TripStatus = "AWAITING_DRIVER_ACCEPTANCE"
	TripStatusInProgress               TripStatus = "IN_PROGRESS"
	TripStatusPaymentFailed            TripStatus = "PAYMENT_FAILED"
	TripStatusCompleted                TripStatus = "COMPLETED"
	TripStatusCancelled                TripStatus = "CANCELLED"
)

// PaymentStatus represents the payment state of a trip.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// PaymentFailureReason distinguishes a card decline from a gateway outage.
// A gateway error is retry-eligible; a decline is not.
type PaymentFailureReason string

const (
	PaymentFailureDeclined     PaymentFailureReason = "DECLINED"
	PaymentFailureGatewayError PaymentFailureReason = "GATEWAY_ERROR"
)

// MaxPaymentReminders caps how many payment reminders a trip can accumulate.
const MaxPaymentReminders = 3

var (
	// ErrDualLinkedTrip is returned when a trip carries both a rider and a
	// facility link. Enforced at write time, never patched at read time.
	ErrDualLinkedTrip = errors.New("trip cannot reference both a rider and a facility")

	// ErrUnlinkedTrip is returned when a trip carries neither link.
	ErrUnlinkedTrip = errors.New("trip must reference a rider or a facility")

	// ErrNegativePrice is returned when a trip price is negative.
	ErrNegativePrice = errors.New("trip price cannot be negative")
)

// Trip represents one transportation request from pickup to destination.
// Exactly one of RiderID / FacilityID is populated: an individual booking
// carries a rider, a facility booking carries a facility and optionally the
// managed client the trip is for.
type Trip struct {
	ID              string
	RiderID         string
	FacilityID      string
	ManagedClientID string

	Status TripStatus

	Price                float64
	PaymentStatus        PaymentStatus
	PaymentFailureReason PaymentFailureReason
	PaymentRetryCount    int
	PaymentReminderCount int

	PickupAddress  string
	DropoffAddress string
	PickupAt       time.Time
	CompletedAt    *time.Time

	DriverID string

	CancelReason string
	CreatedAt    time.Time
}

// Validate checks the construction-time invariants.
func (t *Trip) Validate() error {
	if t.RiderID != "" && t.FacilityID != "" {
		return ErrDualLinkedTrip
	}
	if t.RiderID == "" && t.FacilityID == "" {
		return ErrUnlinkedTrip
	}
	if t.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// IsFacilityBooking reports whether the trip was booked on behalf of a
// healthcare facility.
func (t *Trip) IsFacilityBooking() bool {
	return t.FacilityID != ""
}

// IsTerminal reports whether the status is final.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// IsActive reports whether a trip in this status counts against its
// assigned driver's availability.
func (s TripStatus) IsActive() bool {
	switch s {
	case TripStatusUpcoming, TripStatusAwaitingDriverAcceptance, TripStatusInProgress:
		return true
	default:
		return false
	}
}

// RetryEligible reports whether a payment-failed trip can be retried
// automatically by a dispatcher.
func (t *Trip) RetryEligible() bool {
	return t.Status == TripStatusPaymentFailed &&
		t.PaymentFailureReason == PaymentFailureGatewayError
}
