package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ProfileRepository is a PostgreSQL implementation of repository.ProfileRepository.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{q: db}
}

// GetByID retrieves a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(email, ''), role, COALESCE(facility_id, ''), created_at
		FROM profiles WHERE id = $1
	`

	var profile domain.Profile
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Email,
		&profile.Role,
		&profile.FacilityID,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// ListIDsByRole returns the IDs of all profiles with the given role.
func (r *ProfileRepository) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM profiles WHERE role = $1`, string(role))
}

// ListIDsByFacility returns the IDs of all staff profiles for the facility.
func (r *ProfileRepository) ListIDsByFacility(ctx context.Context, facilityID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM profiles WHERE facility_id = $1`, facilityID)
}

func (r *ProfileRepository) listIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ensure ProfileRepository implements repository.ProfileRepository.
var _ repository.ProfileRepository = (*ProfileRepository)(nil)
