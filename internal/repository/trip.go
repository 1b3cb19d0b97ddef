package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// TripPatch is the set of fields a conditional update may change alongside
// the status. Nil pointers leave the column untouched; a pointer to the
// empty PaymentFailureReason clears it, which is how a recovered payment
// sheds the reason of an earlier failed attempt.
type TripPatch struct {
	Status               domain.TripStatus
	DriverID             *string
	PaymentStatus        *domain.PaymentStatus
	PaymentFailureReason *domain.PaymentFailureReason
	PaymentRetryCount    *int
	PaymentReminderCount *int
	CompletedAt          *time.Time
	CancelReason         *string
}

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// List retrieves trips, newest first, optionally filtered by status.
	List(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error)

	// ConditionalUpdate applies the patch only if the trip's current status
	// equals expected, and returns the updated trip. Returns
	// ErrStatusConflict when the row exists in a different status and
	// ErrNotFound when the trip does not exist. This is the only write path
	// for status transitions.
	ConditionalUpdate(ctx context.Context, id string, expected domain.TripStatus, patch TripPatch) (*domain.Trip, error)

	// CountActiveByDriverID returns how many trips in an active status
	// reference the driver.
	CountActiveByDriverID(ctx context.Context, driverID string) (int, error)

	// SumCompletedByFacilityMonth sums the prices of a facility's trips
	// completed within the given month (YYYY-MM).
	SumCompletedByFacilityMonth(ctx context.Context, facilityID, month string) (float64, int, error)

	// Delete hard-deletes a trip. Only the administrative purge uses this.
	Delete(ctx context.Context, id string) error
}
