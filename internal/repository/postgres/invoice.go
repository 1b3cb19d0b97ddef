package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const invoiceColumns = `id, trip_id, facility_id, month, amount, status, due_at, created_at`

// InvoiceRepository is a PostgreSQL implementation of repository.InvoiceRepository.
type InvoiceRepository struct {
	q Querier
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{q: db}
}

// Create persists a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		invoice.ID,
		nullString(invoice.TripID),
		nullString(invoice.FacilityID),
		nullString(invoice.Month),
		invoice.Amount,
		invoice.Status,
		invoice.DueAt,
		invoice.CreatedAt,
	)
	return err
}

// GetByID retrieves an invoice by ID.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	invoice, err := scanInvoice(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return invoice, nil
}

// GetByFacilityMonth retrieves the aggregate invoice for a facility and
// billing month. Returns nil when none exists.
func (r *InvoiceRepository) GetByFacilityMonth(ctx context.Context, facilityID, month string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE facility_id = $1 AND month = $2`

	invoice, err := scanInvoice(r.q.QueryRowContext(ctx, query, facilityID, month))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return invoice, nil
}

// ListByStatus retrieves invoices in the given status, newest first.
func (r *InvoiceRepository) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE status = $1 ORDER BY created_at DESC LIMIT 200`

	rows, err := r.q.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// ConditionalUpdateStatus moves an invoice from expected to status.
func (r *InvoiceRepository) ConditionalUpdateStatus(ctx context.Context, id string, expected, status domain.InvoiceStatus) error {
	query := `UPDATE invoices SET status = $1 WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, status, id, expected)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStatusConflict
}

// MarkOverdue flips SENT invoices due before the cutoff to OVERDUE.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int, error) {
	query := `UPDATE invoices SET status = $1 WHERE status = $2 AND due_at < $3`

	result, err := r.q.ExecContext(ctx, query, domain.InvoiceStatusOverdue, domain.InvoiceStatusSent, cutoff)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	return int(rowsAffected), err
}

// DeleteByTripID removes invoices linked to a trip.
func (r *InvoiceRepository) DeleteByTripID(ctx context.Context, tripID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM invoices WHERE trip_id = $1`, tripID)
	return err
}

func scanInvoice(row scanner) (*domain.Invoice, error) {
	var invoice domain.Invoice
	var tripID, facilityID, month sql.NullString

	err := row.Scan(
		&invoice.ID,
		&tripID,
		&facilityID,
		&month,
		&invoice.Amount,
		&invoice.Status,
		&invoice.DueAt,
		&invoice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.TripID = tripID.String
	invoice.FacilityID = facilityID.String
	invoice.Month = month.String

	return &invoice, nil
}

// Ensure InvoiceRepository implements repository.InvoiceRepository.
var _ repository.InvoiceRepository = (*InvoiceRepository)(nil)
