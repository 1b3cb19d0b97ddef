package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for driver profiles.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByEmail retrieves a driver by email.
	GetByEmail(ctx context.Context, email string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// UpdateStatus sets the driver's status unconditionally. Administrative
	// use only; lifecycle code goes through the conditional setters.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// ConditionalSetOnTrip flips AVAILABLE -> ON_TRIP. Returns
	// ErrStatusConflict when the driver is not available.
	ConditionalSetOnTrip(ctx context.Context, id string) error

	// ConditionalSetAvailable flips ON_TRIP -> AVAILABLE only if no trip in
	// an active status still references the driver at commit time. Returns
	// ErrStatusConflict as a no-op signal when the guard does not hold.
	ConditionalSetAvailable(ctx context.Context, id string) error

	// ListStatusMismatches returns drivers whose ON_TRIP flag disagrees
	// with their active trips, for the defensive audit sweep.
	ListStatusMismatches(ctx context.Context) ([]*domain.Driver, error)
}
