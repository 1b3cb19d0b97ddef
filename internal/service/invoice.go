package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// defaultPaymentTerm is how long an invoice stays current after being sent.
const defaultPaymentTerm = 30 * 24 * time.Hour

// InvoiceService handles billing records: one invoice per completed
// individual trip, one aggregate invoice per facility per billing month.
type InvoiceService struct {
	invoiceRepo repository.InvoiceRepository
	tripRepo    repository.TripRepository
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(invoiceRepo repository.InvoiceRepository, tripRepo repository.TripRepository) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		tripRepo:    tripRepo,
	}
}

// CreateForTrip creates the invoice for a completed individual trip.
func (s *InvoiceService) CreateForTrip(ctx context.Context, trip *domain.Trip) (*domain.Invoice, error) {
	if trip == nil || trip.ID == "" {
		return nil, ErrInvalidTripID
	}

	now := time.Now()
	invoice := &domain.Invoice{
		ID:        uuid.New().String(),
		TripID:    trip.ID,
		Amount:    trip.Price,
		Status:    domain.InvoiceStatusPending,
		DueAt:     now.Add(defaultPaymentTerm),
		CreatedAt: now,
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// CloseFacilityMonth aggregates a facility's completed trips for a billing
// month (YYYY-MM) into one invoice. Closing an already-closed month fails
// rather than producing a duplicate.
func (s *InvoiceService) CloseFacilityMonth(ctx context.Context, facilityID, month string) (*domain.Invoice, error) {
	if facilityID == "" || month == "" {
		return nil, fmt.Errorf("facility id and month are required")
	}

	existing, err := s.invoiceRepo.GetByFacilityMonth(ctx, facilityID, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrInvoiceExists
	}

	total, count, err := s.tripRepo.SumCompletedByFacilityMonth(ctx, facilityID, month)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNothingToInvoice
	}

	now := time.Now()
	invoice := &domain.Invoice{
		ID:         uuid.New().String(),
		FacilityID: facilityID,
		Month:      month,
		Amount:     total,
		Status:     domain.InvoiceStatusPending,
		DueAt:      now.Add(defaultPaymentTerm),
		CreatedAt:  now,
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// Approve moves a pending invoice to APPROVED.
func (s *InvoiceService) Approve(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.advance(ctx, invoiceID, domain.InvoiceStatusPending, domain.InvoiceStatusApproved)
}

// Send moves an approved invoice to SENT.
func (s *InvoiceService) Send(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.advance(ctx, invoiceID, domain.InvoiceStatusApproved, domain.InvoiceStatusSent)
}

// MarkPaid moves a sent or overdue invoice to PAID.
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	invoice, err := s.get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	from := invoice.Status
	if from != domain.InvoiceStatusSent && from != domain.InvoiceStatusOverdue {
		if from.IsTerminal() {
			return nil, ErrInvoiceFinalized
		}
		return nil, ErrInvalidTransition
	}

	return s.advance(ctx, invoiceID, from, domain.InvoiceStatusPaid)
}

// Cancel voids an invoice that has not reached a terminal state.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	invoice, err := s.get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.Status.IsTerminal() {
		return nil, ErrInvoiceFinalized
	}

	return s.advance(ctx, invoiceID, invoice.Status, domain.InvoiceStatusCancelled)
}

// SweepOverdue flags sent invoices past their due date.
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int, error) {
	return s.invoiceRepo.MarkOverdue(ctx, time.Now())
}

// ListByStatus retrieves invoices in the given status.
func (s *InvoiceService) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error) {
	return s.invoiceRepo.ListByStatus(ctx, status)
}

// GetInvoice retrieves an invoice by ID.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.get(ctx, invoiceID)
}

// DeleteForTrip removes a trip's invoices as part of the admin purge.
func (s *InvoiceService) DeleteForTrip(ctx context.Context, tripID string) error {
	return s.invoiceRepo.DeleteByTripID(ctx, tripID)
}

func (s *InvoiceService) get(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	if invoiceID == "" {
		return nil, ErrInvalidInvoiceID
	}
	return s.invoiceRepo.GetByID(ctx, invoiceID)
}

// advance moves an invoice between statuses with a conditional update so a
// terminal invoice can never be resurrected by a stale request.
func (s *InvoiceService) advance(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus) (*domain.Invoice, error) {
	if invoiceID == "" {
		return nil, ErrInvalidInvoiceID
	}

	err := s.invoiceRepo.ConditionalUpdateStatus(ctx, invoiceID, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			current, getErr := s.invoiceRepo.GetByID(ctx, invoiceID)
			if getErr == nil && current.Status.IsTerminal() {
				return nil, ErrInvoiceFinalized
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	return s.invoiceRepo.GetByID(ctx, invoiceID)
}
