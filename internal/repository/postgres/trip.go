package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const tripColumns = `id, rider_id, facility_id, managed_client_id, status, price,
	payment_status, payment_failure_reason, payment_retry_count, payment_reminder_count,
	pickup_address, dropoff_address, pickup_at, completed_at, driver_id, cancel_reason, created_at`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		nullString(trip.RiderID),
		nullString(trip.FacilityID),
		nullString(trip.ManagedClientID),
		trip.Status,
		trip.Price,
		trip.PaymentStatus,
		nullString(string(trip.PaymentFailureReason)),
		trip.PaymentRetryCount,
		trip.PaymentReminderCount,
		trip.PickupAddress,
		trip.DropoffAddress,
		trip.PickupAt,
		trip.CompletedAt,
		nullString(trip.DriverID),
		nullString(trip.CancelReason),
		trip.CreatedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// List retrieves trips, newest first, optionally filtered by status.
func (r *TripRepository) List(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// ConditionalUpdate applies the patch only if the trip's current status
// matches expected, returning the updated row. The WHERE clause on
// (id, status) is what linearizes concurrent transitions.
func (r *TripRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.TripStatus, patch repository.TripPatch) (*domain.Trip, error) {
	query := `
		UPDATE trips SET
			status = $1,
			driver_id = COALESCE($2, driver_id),
			payment_status = COALESCE($3, payment_status),
			payment_failure_reason = NULLIF(COALESCE($4, payment_failure_reason), ''),
			payment_retry_count = COALESCE($5, payment_retry_count),
			payment_reminder_count = COALESCE($6, payment_reminder_count),
			completed_at = COALESCE($7, completed_at),
			cancel_reason = COALESCE($8, cancel_reason)
		WHERE id = $9 AND status = $10
		RETURNING ` + tripColumns

	var reason *string
	if patch.PaymentFailureReason != nil {
		s := string(*patch.PaymentFailureReason)
		reason = &s
	}
	var payStatus *string
	if patch.PaymentStatus != nil {
		s := string(*patch.PaymentStatus)
		payStatus = &s
	}

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query,
		patch.Status,
		patch.DriverID,
		payStatus,
		reason,
		patch.PaymentRetryCount,
		patch.PaymentReminderCount,
		patch.CompletedAt,
		patch.CancelReason,
		id,
		expected,
	))
	if err == nil {
		return trip, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Zero rows: either the trip is gone or the CAS lost.
	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrStatusConflict
}

// CountActiveByDriverID returns how many active trips reference the driver.
func (r *TripRepository) CountActiveByDriverID(ctx context.Context, driverID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM trips
		WHERE driver_id = $1 AND status IN ($2, $3, $4)
	`

	var count int
	err := r.q.QueryRowContext(ctx, query, driverID,
		domain.TripStatusUpcoming,
		domain.TripStatusAwaitingDriverAcceptance,
		domain.TripStatusInProgress,
	).Scan(&count)
	return count, err
}

// SumCompletedByFacilityMonth sums the prices of a facility's trips
// completed within the month (YYYY-MM).
func (r *TripRepository) SumCompletedByFacilityMonth(ctx context.Context, facilityID, month string) (float64, int, error) {
	query := `
		SELECT COALESCE(SUM(price), 0), COUNT(*)
		FROM trips
		WHERE facility_id = $1
		  AND status = $2
		  AND to_char(completed_at, 'YYYY-MM') = $3
	`

	var total float64
	var count int
	err := r.q.QueryRowContext(ctx, query, facilityID, domain.TripStatusCompleted, month).Scan(&total, &count)
	return total, count, err
}

// Delete hard-deletes a trip.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
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

// scanner abstracts *sql.Row and *sql.Rows for scanTrip.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(row scanner) (*domain.Trip, error) {
	var trip domain.Trip
	var riderID, facilityID, managedClientID, driverID sql.NullString
	var failureReason, cancelReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&riderID,
		&facilityID,
		&managedClientID,
		&trip.Status,
		&trip.Price,
		&trip.PaymentStatus,
		&failureReason,
		&trip.PaymentRetryCount,
		&trip.PaymentReminderCount,
		&trip.PickupAddress,
		&trip.DropoffAddress,
		&trip.PickupAt,
		&completedAt,
		&driverID,
		&cancelReason,
		&trip.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.RiderID = riderID.String
	trip.FacilityID = facilityID.String
	trip.ManagedClientID = managedClientID.String
	trip.DriverID = driverID.String
	trip.PaymentFailureReason = domain.PaymentFailureReason(failureReason.String)
	trip.CancelReason = cancelReason.String
	if completedAt.Valid {
		t := completedAt.Time
		trip.CompletedAt = &t
	}

	return &trip, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
