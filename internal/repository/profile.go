package repository

import (
	"context"

	"dispatch/internal/domain"
)

// ProfileRepository defines the persistence operations for profiles.
// The notification fan-out uses it to resolve recipients.
type ProfileRepository interface {
	// GetByID retrieves a profile by ID.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)

	// ListIDsByRole returns the IDs of all profiles with the given role.
	ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error)

	// ListIDsByFacility returns the IDs of all staff profiles belonging to
	// the facility.
	ListIDsByFacility(ctx context.Context, facilityID string) ([]string, error)
}
