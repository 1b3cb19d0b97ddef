package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// InvoiceRepository defines the persistence operations for invoices.
type InvoiceRepository interface {
	// Create persists a new invoice.
	Create(ctx context.Context, invoice *domain.Invoice) error

	// GetByID retrieves an invoice by ID.
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)

	// GetByFacilityMonth retrieves the aggregate invoice for a facility and
	// billing month. Returns nil when none exists.
	GetByFacilityMonth(ctx context.Context, facilityID, month string) (*domain.Invoice, error)

	// ListByStatus retrieves invoices in the given status, newest first.
	ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error)

	// ConditionalUpdateStatus moves an invoice from expected to status.
	// Returns ErrStatusConflict when the row is in a different status, so
	// terminal invoices can never be mutated.
	ConditionalUpdateStatus(ctx context.Context, id string, expected, status domain.InvoiceStatus) error

	// MarkOverdue flips SENT invoices due before the cutoff to OVERDUE and
	// returns how many rows changed.
	MarkOverdue(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteByTripID removes invoices linked to a trip. Used by the
	// administrative trip purge cascade.
	DeleteByTripID(ctx context.Context, tripID string) error
}
