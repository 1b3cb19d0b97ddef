package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// newLifecycleService wires a coordinator over mocks, without Redis.
func newLifecycleService(tripRepo *MockTripRepository, driverRepo *MockDriverRepository, gateway *MockPaymentGateway, notifier *MockNotifier, invoices *MockInvoiceRepository) *service.LifecycleService {
	var invoiceService *service.InvoiceService
	if invoices != nil {
		invoiceService = service.NewInvoiceService(invoices, tripRepo)
	}
	return service.NewLifecycleService(tripRepo, driverRepo, gateway, notifier, invoiceService, nil, nil)
}

func pendingTrip(id string) *domain.Trip {
	return &domain.Trip{
		ID:            id,
		RiderID:       "rider-1",
		Status:        domain.TripStatusPending,
		Price:         42.50,
		PaymentStatus: domain.PaymentStatusUnpaid,
		PickupAt:      time.Now().Add(24 * time.Hour),
		CreatedAt:     time.Now(),
	}
}

// ──────────────────────────────────────────────
// APPROVAL AND PAYMENT CAPTURE
// ──────────────────────────────────────────────

func TestApprove_CapturesPaymentAndMovesToUpcoming(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	notifier := NewMockNotifier()
	svc := newLifecycleService(tripRepo, driverRepo, gateway, notifier, nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusUpcoming {
		t.Errorf("expected status %s, got %s", domain.TripStatusUpcoming, result.Trip.Status)
	}
	if result.Trip.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected payment status %s, got %s", domain.PaymentStatusPaid, result.Trip.PaymentStatus)
	}
	if result.Payment == nil || !result.Payment.Captured {
		t.Error("expected a captured payment outcome")
	}
	if gateway.Captures() != 1 {
		t.Errorf("expected 1 capture, got %d", gateway.Captures())
	}
	if result.Trip.PaymentRetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", result.Trip.PaymentRetryCount)
	}

	events := notifier.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 transition event, got %d", len(events))
	}
	if events[0].DedupeKey() != "trip-1:UPCOMING" {
		t.Errorf("unexpected dedupe key %q", events[0].DedupeKey())
	}
}

func TestApprove_GatewayErrorParksTripRetryEligible(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	gateway.Result = &service.CaptureResult{Captured: false, Reason: domain.PaymentFailureGatewayError}
	svc := newLifecycleService(tripRepo, driverRepo, gateway, NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusPaymentFailed {
		t.Errorf("expected status %s, got %s", domain.TripStatusPaymentFailed, result.Trip.Status)
	}
	if result.Trip.PaymentFailureReason != domain.PaymentFailureGatewayError {
		t.Errorf("expected failure reason %s, got %s", domain.PaymentFailureGatewayError, result.Trip.PaymentFailureReason)
	}
	if !result.Trip.RetryEligible() {
		t.Error("expected trip to be retry-eligible after a gateway error")
	}

	// A dispatcher retry goes through the same reservation and succeeds.
	gateway.mu.Lock()
	gateway.Result = nil
	gateway.mu.Unlock()

	retried, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionRetryApprove, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if retried.Trip.Status != domain.TripStatusUpcoming {
		t.Errorf("expected status %s after retry, got %s", domain.TripStatusUpcoming, retried.Trip.Status)
	}
	if retried.Trip.PaymentRetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", retried.Trip.PaymentRetryCount)
	}
	if retried.Trip.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected payment status %s after retry, got %s", domain.PaymentStatusPaid, retried.Trip.PaymentStatus)
	}
	// The recovered trip must not keep reporting the earlier failure.
	if retried.Trip.PaymentFailureReason != "" {
		t.Errorf("expected failure reason cleared after successful retry, got %s", retried.Trip.PaymentFailureReason)
	}
	if stored := tripRepo.GetTrip("trip-1"); stored.PaymentFailureReason != "" {
		t.Errorf("stored trip must not keep a stale failure reason, got %s", stored.PaymentFailureReason)
	}
}

func TestApprove_DeclineIsNotRetryEligible(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	gateway.Result = &service.CaptureResult{Captured: false, Reason: domain.PaymentFailureDeclined}
	svc := newLifecycleService(tripRepo, driverRepo, gateway, NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusPaymentFailed {
		t.Errorf("expected status %s, got %s", domain.TripStatusPaymentFailed, result.Trip.Status)
	}
	if result.Trip.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("expected payment status %s, got %s", domain.PaymentStatusFailed, result.Trip.PaymentStatus)
	}
	if result.Trip.RetryEligible() {
		t.Error("a declined payment must not be retry-eligible")
	}
}

func TestApprove_AlreadyApprovedIsNoOp(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	svc := newLifecycleService(tripRepo, driverRepo, gateway, NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	if _, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A duplicate submission must not trigger a second charge.
	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected error on re-approve: %v", err)
	}
	if result.Trip.Status != domain.TripStatusUpcoming {
		t.Errorf("expected status %s, got %s", domain.TripStatusUpcoming, result.Trip.Status)
	}
	if gateway.Captures() != 1 {
		t.Errorf("expected exactly 1 capture across both approvals, got %d", gateway.Captures())
	}
}

func TestRetryApprove_HonorsRetryLimit(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	svc := newLifecycleService(tripRepo, driverRepo, gateway, NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusPaymentFailed
	trip.PaymentStatus = domain.PaymentStatusFailed
	trip.PaymentFailureReason = domain.PaymentFailureGatewayError
	trip.PaymentRetryCount = service.MaxPaymentRetries
	tripRepo.AddTrip(trip)

	_, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionRetryApprove, domain.RoleDispatcher, service.ActionOptions{})
	if !errors.Is(err, service.ErrPaymentRetryLimit) {
		t.Fatalf("expected ErrPaymentRetryLimit, got %v", err)
	}
	if gateway.Captures() != 0 {
		t.Errorf("expected no capture past the retry limit, got %d", gateway.Captures())
	}
}

func TestApprove_ConcurrentApprovalsChargeOnce(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	gateway := NewMockPaymentGateway()
	svc := newLifecycleService(tripRepo, driverRepo, gateway, NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleDispatcher, service.ActionOptions{})
		}(i)
	}
	wg.Wait()

	// Exactly one request wins the reservation. The loser either sees the
	// conflict or the no-op fast path, but the card is charged once.
	if gateway.Captures() != 1 {
		t.Fatalf("expected exactly 1 capture, got %d", gateway.Captures())
	}

	conflicts := 0
	for _, err := range results {
		if errors.Is(err, service.ErrConflictingTransition) {
			conflicts++
		} else if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if conflicts > 1 {
		t.Errorf("expected at most 1 conflict, got %d", conflicts)
	}

	stored := tripRepo.GetTrip("trip-1")
	if stored.Status != domain.TripStatusUpcoming {
		t.Errorf("expected final status %s, got %s", domain.TripStatusUpcoming, stored.Status)
	}
}

// ──────────────────────────────────────────────
// INVALID AND GUARDED TRANSITIONS
// ──────────────────────────────────────────────

func TestApplyAction_InvalidTransitionLeavesTripUnmodified(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	_, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionComplete, domain.RoleDispatcher, service.ActionOptions{})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored := tripRepo.GetTrip("trip-1")
	if stored.Status != domain.TripStatusPending {
		t.Errorf("trip must stay %s, got %s", domain.TripStatusPending, stored.Status)
	}
	if stored.CompletedAt != nil {
		t.Error("completed_at must stay nil on a rejected transition")
	}
}

func TestApplyAction_TerminalTripCannotMove(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusCancelled
	tripRepo.AddTrip(trip)

	for _, action := range []domain.Action{domain.ActionApprove, domain.ActionComplete, domain.ActionStart, domain.ActionAdminCancel} {
		if _, err := svc.ApplyAction(context.Background(), "trip-1", action, domain.RoleAdmin, service.ActionOptions{}); !errors.Is(err, service.ErrInvalidTransition) {
			t.Errorf("action %s: expected ErrInvalidTransition, got %v", action, err)
		}
	}
}

func TestApplyAction_RejectsNonDispatchingRoles(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	tripRepo.AddTrip(pendingTrip("trip-1"))

	_, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionApprove, domain.RoleRider, service.ActionOptions{})
	if !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}
}

// ──────────────────────────────────────────────
// COMPLETION
// ──────────────────────────────────────────────

func TestComplete_SetsCompletedAtAndInvoicesIndividualTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	invoices := NewMockInvoiceRepository()
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), invoices)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusInProgress
	trip.PaymentStatus = domain.PaymentStatusPaid
	tripRepo.AddTrip(trip)

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionComplete, domain.RoleDispatcher, service.ActionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected status %s, got %s", domain.TripStatusCompleted, result.Trip.Status)
	}
	if result.Trip.CompletedAt == nil {
		t.Error("completed trip must carry completed_at")
	}
	if invoices.CountInvoices() != 1 {
		t.Errorf("expected 1 invoice for an individual trip, got %d", invoices.CountInvoices())
	}
}

func TestComplete_FacilityTripDoesNotInvoiceImmediately(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	invoices := NewMockInvoiceRepository()
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), invoices)

	trip := pendingTrip("trip-1")
	trip.RiderID = ""
	trip.FacilityID = "facility-1"
	trip.Status = domain.TripStatusInProgress
	tripRepo.AddTrip(trip)

	if _, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionComplete, domain.RoleDispatcher, service.ActionOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Facility trips are billed by the monthly close, not per trip.
	if invoices.CountInvoices() != 0 {
		t.Errorf("expected no per-trip invoice for a facility booking, got %d", invoices.CountInvoices())
	}
}

// ──────────────────────────────────────────────
// DRIVER ASSIGNMENT AND RECONCILIATION
// ──────────────────────────────────────────────

func TestAssignDriver_FlipsDriverOnTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusUpcoming
	trip.PaymentStatus = domain.PaymentStatusPaid
	tripRepo.AddTrip(trip)
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable})

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionAssignDriver, domain.RoleDispatcher, service.ActionOptions{DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.DriverID != "driver-1" {
		t.Errorf("expected driver-1 on the trip, got %q", result.Trip.DriverID)
	}
	if result.Trip.Status != domain.TripStatusUpcoming {
		t.Errorf("expected status %s, got %s", domain.TripStatusUpcoming, result.Trip.Status)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusOnTrip {
		t.Error("expected driver to be ON_TRIP after assignment")
	}
}

func TestAssignDriver_RequireAcceptanceParksTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusUpcoming
	tripRepo.AddTrip(trip)
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable})

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionAssignDriver, domain.RoleDispatcher, service.ActionOptions{
		DriverID:          "driver-1",
		RequireAcceptance: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Trip.Status != domain.TripStatusAwaitingDriverAcceptance {
		t.Errorf("expected status %s, got %s", domain.TripStatusAwaitingDriverAcceptance, result.Trip.Status)
	}
}

func TestAssignDriver_InactiveDriverRejected(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusUpcoming
	tripRepo.AddTrip(trip)
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusInactive})

	_, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionAssignDriver, domain.RoleDispatcher, service.ActionOptions{DriverID: "driver-1"})
	if !errors.Is(err, service.ErrDriverInactive) {
		t.Fatalf("expected ErrDriverInactive, got %v", err)
	}
}

func TestComplete_DriverWithTwoTripsStaysOnTripUntilLast(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOnTrip})
	for _, id := range []string{"trip-1", "trip-2"} {
		trip := pendingTrip(id)
		trip.Status = domain.TripStatusInProgress
		trip.DriverID = "driver-1"
		tripRepo.AddTrip(trip)
	}

	if _, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionComplete, domain.RoleDispatcher, service.ActionOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusOnTrip {
		t.Error("driver must stay ON_TRIP while another active trip references them")
	}

	if _, err := svc.ApplyAction(context.Background(), "trip-2", domain.ActionComplete, domain.RoleDispatcher, service.ActionOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusAvailable {
		t.Error("driver must return to AVAILABLE after their last active trip completes")
	}
}

func TestCancel_ReleasesAssignedDriver(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOnTrip})
	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusUpcoming
	trip.DriverID = "driver-1"
	tripRepo.AddTrip(trip)

	result, err := svc.ApplyAction(context.Background(), "trip-1", domain.ActionAdminCancel, domain.RoleAdmin, service.ActionOptions{Reason: "rider no-show"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.TripStatusCancelled, result.Trip.Status)
	}
	if result.Trip.CancelReason != "rider no-show" {
		t.Errorf("expected cancel reason to persist, got %q", result.Trip.CancelReason)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusAvailable {
		t.Error("expected driver released after cancellation")
	}
}

// ──────────────────────────────────────────────
// PAYMENT REMINDERS
// ──────────────────────────────────────────────

func TestSendPaymentReminder_OnlyForDeclinedTrips(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	notifier := NewMockNotifier()
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), notifier, nil)

	declined := pendingTrip("trip-1")
	declined.Status = domain.TripStatusPaymentFailed
	declined.PaymentFailureReason = domain.PaymentFailureDeclined
	tripRepo.AddTrip(declined)

	gatewayFailed := pendingTrip("trip-2")
	gatewayFailed.Status = domain.TripStatusPaymentFailed
	gatewayFailed.PaymentFailureReason = domain.PaymentFailureGatewayError
	tripRepo.AddTrip(gatewayFailed)

	updated, err := svc.SendPaymentReminder(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PaymentReminderCount != 1 {
		t.Errorf("expected reminder count 1, got %d", updated.PaymentReminderCount)
	}
	if len(notifier.Reminders()) != 1 {
		t.Errorf("expected 1 reminder notification, got %d", len(notifier.Reminders()))
	}

	// Gateway failures get retried by dispatch, not dunned to the customer.
	if _, err := svc.SendPaymentReminder(context.Background(), "trip-2"); !errors.Is(err, service.ErrReminderNotApplicable) {
		t.Fatalf("expected ErrReminderNotApplicable, got %v", err)
	}
}

func TestSendPaymentReminder_Capped(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusPaymentFailed
	trip.PaymentFailureReason = domain.PaymentFailureDeclined
	trip.PaymentReminderCount = domain.MaxPaymentReminders
	tripRepo.AddTrip(trip)

	if _, err := svc.SendPaymentReminder(context.Background(), "trip-1"); !errors.Is(err, service.ErrReminderLimit) {
		t.Fatalf("expected ErrReminderLimit, got %v", err)
	}
}

// ──────────────────────────────────────────────
// CREATION AND PURGE
// ──────────────────────────────────────────────

func TestCreateTrip_RejectsDualAndMissingLinks(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), nil)

	_, err := svc.CreateTrip(context.Background(), service.CreateTripRequest{
		RiderID:    "rider-1",
		FacilityID: "facility-1",
		Price:      10,
	})
	if !errors.Is(err, domain.ErrDualLinkedTrip) {
		t.Fatalf("expected ErrDualLinkedTrip, got %v", err)
	}

	_, err = svc.CreateTrip(context.Background(), service.CreateTripRequest{Price: 10})
	if !errors.Is(err, domain.ErrUnlinkedTrip) {
		t.Fatalf("expected ErrUnlinkedTrip, got %v", err)
	}

	if tripRepo.CountTrips() != 0 {
		t.Errorf("invalid trips must never be stored, found %d", tripRepo.CountTrips())
	}

	trip, err := svc.CreateTrip(context.Background(), service.CreateTripRequest{RiderID: "rider-1", Price: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.Status != domain.TripStatusPending {
		t.Errorf("new trips must start %s, got %s", domain.TripStatusPending, trip.Status)
	}
}

func TestPurgeTrip_AdminOnlyAndCascades(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	invoices := NewMockInvoiceRepository()
	svc := newLifecycleService(tripRepo, driverRepo, NewMockPaymentGateway(), NewMockNotifier(), invoices)

	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusCancelled
	tripRepo.AddTrip(trip)
	invoices.AddInvoice(&domain.Invoice{ID: "inv-1", TripID: "trip-1", Status: domain.InvoiceStatusPending})

	if err := svc.PurgeTrip(context.Background(), "trip-1", domain.RoleDispatcher); !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed for dispatcher, got %v", err)
	}

	if err := svc.PurgeTrip(context.Background(), "trip-1", domain.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tripRepo.CountTrips() != 0 {
		t.Error("expected trip removed")
	}
	if invoices.CountInvoices() != 0 {
		t.Error("expected linked invoices removed")
	}
}
