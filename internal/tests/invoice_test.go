package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func completedFacilityTrip(id, facilityID string, price float64, completedAt time.Time) *domain.Trip {
	return &domain.Trip{
		ID:          id,
		FacilityID:  facilityID,
		Status:      domain.TripStatusCompleted,
		Price:       price,
		CompletedAt: &completedAt,
		CreatedAt:   completedAt.Add(-2 * time.Hour),
	}
}

func TestCloseFacilityMonth_AggregatesCompletedTrips(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	july := time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC)
	tripRepo.AddTrip(completedFacilityTrip("trip-1", "facility-1", 40, july))
	tripRepo.AddTrip(completedFacilityTrip("trip-2", "facility-1", 60, july.AddDate(0, 0, 5)))
	// Different month and different facility stay out of the aggregate.
	tripRepo.AddTrip(completedFacilityTrip("trip-3", "facility-1", 99, july.AddDate(0, 1, 0)))
	tripRepo.AddTrip(completedFacilityTrip("trip-4", "facility-2", 99, july))

	invoice, err := svc.CloseFacilityMonth(context.Background(), "facility-1", "2026-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if invoice.Amount != 100 {
		t.Errorf("expected aggregate amount 100, got %v", invoice.Amount)
	}
	if invoice.Status != domain.InvoiceStatusPending {
		t.Errorf("expected status %s, got %s", domain.InvoiceStatusPending, invoice.Status)
	}
	if invoice.FacilityID != "facility-1" || invoice.Month != "2026-07" {
		t.Errorf("invoice carries wrong facility/month: %s %s", invoice.FacilityID, invoice.Month)
	}
}

func TestCloseFacilityMonth_RejectsDuplicateClose(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	july := time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC)
	tripRepo.AddTrip(completedFacilityTrip("trip-1", "facility-1", 40, july))

	if _, err := svc.CloseFacilityMonth(context.Background(), "facility-1", "2026-07"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CloseFacilityMonth(context.Background(), "facility-1", "2026-07"); !errors.Is(err, service.ErrInvoiceExists) {
		t.Fatalf("expected ErrInvoiceExists, got %v", err)
	}
	if invoices.CountInvoices() != 1 {
		t.Errorf("expected 1 invoice, got %d", invoices.CountInvoices())
	}
}

func TestCloseFacilityMonth_NothingToInvoice(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	if _, err := svc.CloseFacilityMonth(context.Background(), "facility-1", "2026-07"); !errors.Is(err, service.ErrNothingToInvoice) {
		t.Fatalf("expected ErrNothingToInvoice, got %v", err)
	}
}

func TestInvoice_LifecycleAdvances(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	invoices.AddInvoice(&domain.Invoice{ID: "inv-1", TripID: "trip-1", Amount: 50, Status: domain.InvoiceStatusPending})

	if _, err := svc.Approve(context.Background(), "inv-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Send(context.Background(), "inv-1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	invoice, err := svc.MarkPaid(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if invoice.Status != domain.InvoiceStatusPaid {
		t.Errorf("expected status %s, got %s", domain.InvoiceStatusPaid, invoice.Status)
	}
}

func TestInvoice_SkippingStatesRejected(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	invoices.AddInvoice(&domain.Invoice{ID: "inv-1", Status: domain.InvoiceStatusPending})

	// PENDING cannot jump straight to SENT or PAID.
	if _, err := svc.Send(context.Background(), "inv-1"); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("send from pending: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), "inv-1"); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("paid from pending: expected ErrInvalidTransition, got %v", err)
	}
}

func TestInvoice_TerminalStatesAreImmutable(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	invoices.AddInvoice(&domain.Invoice{ID: "inv-paid", Status: domain.InvoiceStatusPaid})
	invoices.AddInvoice(&domain.Invoice{ID: "inv-cancelled", Status: domain.InvoiceStatusCancelled})

	for _, id := range []string{"inv-paid", "inv-cancelled"} {
		if _, err := svc.Cancel(context.Background(), id); !errors.Is(err, service.ErrInvoiceFinalized) {
			t.Errorf("cancel %s: expected ErrInvoiceFinalized, got %v", id, err)
		}
		if _, err := svc.MarkPaid(context.Background(), id); !errors.Is(err, service.ErrInvoiceFinalized) {
			t.Errorf("mark paid %s: expected ErrInvoiceFinalized, got %v", id, err)
		}
	}
}

func TestSweepOverdue_FlagsSentInvoicesPastDue(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	invoices := NewMockInvoiceRepository()
	svc := service.NewInvoiceService(invoices, tripRepo)

	invoices.AddInvoice(&domain.Invoice{ID: "inv-late", Status: domain.InvoiceStatusSent, DueAt: time.Now().Add(-48 * time.Hour)})
	invoices.AddInvoice(&domain.Invoice{ID: "inv-current", Status: domain.InvoiceStatusSent, DueAt: time.Now().Add(48 * time.Hour)})
	invoices.AddInvoice(&domain.Invoice{ID: "inv-pending", Status: domain.InvoiceStatusPending, DueAt: time.Now().Add(-48 * time.Hour)})

	flagged, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flagged != 1 {
		t.Errorf("expected 1 invoice flagged, got %d", flagged)
	}

	if invoices.GetInvoice("inv-late").Status != domain.InvoiceStatusOverdue {
		t.Error("past-due sent invoice must become OVERDUE")
	}
	if invoices.GetInvoice("inv-current").Status != domain.InvoiceStatusSent {
		t.Error("current invoice must stay SENT")
	}

	// An overdue invoice can still settle.
	paid, err := svc.MarkPaid(context.Background(), "inv-late")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.Status != domain.InvoiceStatusPaid {
		t.Errorf("expected status %s, got %s", domain.InvoiceStatusPaid, paid.Status)
	}
}
