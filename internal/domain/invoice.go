package domain

import "time"

// InvoiceStatus represents the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusApproved  InvoiceStatus = "APPROVED"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
)

// IsTerminal reports whether an invoice can no longer be mutated.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// Invoice is a billing record: one per completed individual trip, or one
// per facility per billing month (aggregate). Exactly one of TripID /
// (FacilityID, Month) is populated.
type Invoice struct {
	ID         string
	TripID     string
	FacilityID string
	Month      string // YYYY-MM for facility aggregates
	Amount     float64
	Status     InvoiceStatus
	DueAt      time.Time
	CreatedAt  time.Time
}
