package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// activeStatuses is inlined into driver guards; keep in sync with
// domain.TripStatus.IsActive.
const activeStatusesSQL = `'UPCOMING', 'AWAITING_DRIVER_ACCEPTANCE', 'IN_PROGRESS'`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, name, phone, email, status) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, driver.ID, driver.Name, driver.Phone, driver.Email, driver.Status)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), status FROM drivers WHERE id = $1`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.Email,
		&driver.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// GetByEmail retrieves a driver by email.
func (r *DriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), status FROM drivers WHERE email = $1`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, email).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.Email,
		&driver.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), status FROM drivers ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		var driver domain.Driver
		if err := rows.Scan(&driver.ID, &driver.Name, &driver.Phone, &driver.Email, &driver.Status); err != nil {
			return nil, err
		}
		drivers = append(drivers, &driver)
	}
	return drivers, rows.Err()
}

// UpdateStatus sets the driver's status unconditionally.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ConditionalSetOnTrip flips AVAILABLE -> ON_TRIP.
func (r *DriverRepository) ConditionalSetOnTrip(ctx context.Context, id string) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, domain.DriverStatusOnTrip, id, domain.DriverStatusAvailable)
	if err != nil {
		return err
	}
	return r.casOutcome(ctx, result, id)
}

// ConditionalSetAvailable flips ON_TRIP -> AVAILABLE only if no active trip
// still references the driver. The NOT EXISTS guard is evaluated at commit
// time, so the flip cannot race a concurrent assignment.
func (r *DriverRepository) ConditionalSetAvailable(ctx context.Context, id string) error {
	query := `
		UPDATE drivers SET status = $1
		WHERE id = $2
		  AND status = $3
		  AND NOT EXISTS (
			SELECT 1 FROM trips
			WHERE driver_id = $2 AND status IN (` + activeStatusesSQL + `)
		  )
	`

	result, err := r.q.ExecContext(ctx, query, domain.DriverStatusAvailable, id, domain.DriverStatusOnTrip)
	if err != nil {
		return err
	}
	return r.casOutcome(ctx, result, id)
}

// ListStatusMismatches returns drivers whose ON_TRIP flag disagrees with
// their active trips.
func (r *DriverRepository) ListStatusMismatches(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), status
		FROM drivers d
		WHERE (d.status = 'ON_TRIP' AND NOT EXISTS (
			SELECT 1 FROM trips WHERE driver_id = d.id AND status IN (` + activeStatusesSQL + `)))
		   OR (d.status = 'AVAILABLE' AND EXISTS (
			SELECT 1 FROM trips WHERE driver_id = d.id AND status IN (` + activeStatusesSQL + `)))
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		var driver domain.Driver
		if err := rows.Scan(&driver.ID, &driver.Name, &driver.Phone, &driver.Email, &driver.Status); err != nil {
			return nil, err
		}
		drivers = append(drivers, &driver)
	}
	return drivers, rows.Err()
}

// casOutcome maps a zero-row conditional update to the right sentinel.
func (r *DriverRepository) casOutcome(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStatusConflict
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
