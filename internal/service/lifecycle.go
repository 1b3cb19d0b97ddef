package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	// MaxPaymentRetries caps how many capture attempts a trip gets across
	// the initial approval and dispatcher retries.
	MaxPaymentRetries = 3

	assignmentLockTTL = 10 * time.Second
)

// LifecycleService is the trip lifecycle coordinator. It validates and
// applies state transitions on a single trip, orchestrates payment capture
// on approval, reconciles driver availability, and triggers notification
// fan-out. Every status mutation goes through the trip repository's
// conditional update so concurrent requests on the same trip are
// linearized.
type LifecycleService struct {
	tripRepo       repository.TripRepository
	driverRepo     repository.DriverRepository
	gateway        PaymentGateway
	notifier       Notifier
	invoiceService *InvoiceService
	lockStore      redis.LockStoreInterface
	cacheStore     *redis.CacheStore
}

// NewLifecycleService creates a new LifecycleService. notifier,
// invoiceService, lockStore and cacheStore may be nil.
func NewLifecycleService(
	tripRepo repository.TripRepository,
	driverRepo repository.DriverRepository,
	gateway PaymentGateway,
	notifier Notifier,
	invoiceService *InvoiceService,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
) *LifecycleService {
	return &LifecycleService{
		tripRepo:       tripRepo,
		driverRepo:     driverRepo,
		gateway:        gateway,
		notifier:       notifier,
		invoiceService: invoiceService,
		lockStore:      lockStore,
		cacheStore:     cacheStore,
	}
}

// ActionOptions carries the optional parameters of a lifecycle action.
type ActionOptions struct {
	Reason            string // reject / admin-cancel reason
	DriverID          string // assign-driver target
	RequireAcceptance bool   // assign-driver: park in AWAITING_DRIVER_ACCEPTANCE
}

// ActionResult is the outcome of a successfully applied action.
type ActionResult struct {
	Trip    *domain.Trip
	Payment *CaptureResult // set for approve / retry-approve
}

// ApplyAction validates and applies a lifecycle action on a trip. The
// caller supplies a role already verified by the access guard; the
// coordinator only checks that the role is a dispatching role.
func (s *LifecycleService) ApplyAction(ctx context.Context, tripID string, action domain.Action, actorRole domain.Role, opts ActionOptions) (*ActionResult, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if !actorRole.CanDispatch() {
		return nil, ErrRoleNotAllowed
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	switch action {
	case domain.ActionApprove:
		return s.approve(ctx, trip, false)
	case domain.ActionRetryApprove:
		return s.approve(ctx, trip, true)
	case domain.ActionReject:
		return s.cancel(ctx, trip, domain.ActionReject, opts.Reason)
	case domain.ActionAdminCancel:
		return s.cancel(ctx, trip, domain.ActionAdminCancel, opts.Reason)
	case domain.ActionComplete:
		return s.complete(ctx, trip)
	case domain.ActionAssignDriver:
		return s.assignDriver(ctx, trip, opts)
	case domain.ActionStart:
		return s.start(ctx, trip)
	default:
		return nil, ErrInvalidAction
	}
}

// approve runs the reservation -> capture -> finalize sequence. The trip is
// moved to APPROVED_PENDING_PAYMENT before the gateway is called so a
// concurrent rejection cannot cancel a trip that is being charged, and a
// concurrent approve loses the compare-and-swap instead of double-charging.
func (s *LifecycleService) approve(ctx context.Context, trip *domain.Trip, isRetry bool) (*ActionResult, error) {
	// Re-approval of an already approved trip is a no-op, not a second
	// charge. Guards duplicate submissions from retries and double-clicks.
	if trip.Status == domain.TripStatusUpcoming || trip.Status == domain.TripStatusApprovedPendingPayment {
		return &ActionResult{Trip: trip}, nil
	}

	action := domain.ActionApprove
	if isRetry {
		action = domain.ActionRetryApprove
		if trip.PaymentRetryCount >= MaxPaymentRetries {
			return nil, ErrPaymentRetryLimit
		}
	}

	reserved, err := s.transition(ctx, trip, action, repository.TripPatch{})
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Capture(ctx, reserved.ID)
	if err != nil {
		// Unexpected client-side failure; treat like a gateway fault so the
		// trip is parked retry-eligible instead of stuck in the reservation.
		log.Printf("lifecycle: capture for trip %s: %v", reserved.ID, err)
		result = &CaptureResult{Captured: false, Reason: domain.PaymentFailureGatewayError}
	}

	retries := reserved.PaymentRetryCount + 1
	var final *domain.Trip
	if result.Captured {
		paid := domain.PaymentStatusPaid
		// Clear any failure reason left over from an earlier attempt.
		noReason := domain.PaymentFailureReason("")
		final, err = s.tripRepo.ConditionalUpdate(ctx, reserved.ID, domain.TripStatusApprovedPendingPayment, repository.TripPatch{
			Status:               domain.TripStatusUpcoming,
			PaymentStatus:        &paid,
			PaymentFailureReason: &noReason,
			PaymentRetryCount:    &retries,
		})
	} else {
		failed := domain.PaymentStatusFailed
		reason := result.Reason
		final, err = s.tripRepo.ConditionalUpdate(ctx, reserved.ID, domain.TripStatusApprovedPendingPayment, repository.TripPatch{
			Status:               domain.TripStatusPaymentFailed,
			PaymentStatus:        &failed,
			PaymentFailureReason: &reason,
			PaymentRetryCount:    &retries,
		})
	}
	if err != nil {
		// The reservation was taken over while the gateway call was in
		// flight (admin cancel). If the capture succeeded the charge is now
		// orphaned; surface it in the logs for manual follow-up.
		if result.Captured {
			log.Printf("lifecycle: trip %s left reservation during capture, payment may need reversal", reserved.ID)
		}
		return nil, s.mapRepoError(err)
	}

	s.invalidateCache(ctx, final.ID)
	s.notifyTransition(ctx, final, action, trip.Status, "")

	return &ActionResult{Trip: final, Payment: result}, nil
}

// cancel handles reject and admin-cancel. Both land in CANCELLED; the
// transition table decides which statuses each action may leave.
func (s *LifecycleService) cancel(ctx context.Context, trip *domain.Trip, action domain.Action, reason string) (*ActionResult, error) {
	patch := repository.TripPatch{}
	if reason != "" {
		patch.CancelReason = &reason
	}

	cancelled, err := s.transition(ctx, trip, action, patch)
	if err != nil {
		return nil, err
	}

	s.reconcileDriver(ctx, cancelled.DriverID)
	s.invalidateCache(ctx, cancelled.ID)
	s.notifyTransition(ctx, cancelled, action, trip.Status, reason)

	return &ActionResult{Trip: cancelled}, nil
}

// complete marks the trip finished. completed_at is set in the same
// conditional update that flips the status, keeping the
// status==COMPLETED <=> completed_at != nil invariant.
func (s *LifecycleService) complete(ctx context.Context, trip *domain.Trip) (*ActionResult, error) {
	now := time.Now()
	completed, err := s.transition(ctx, trip, domain.ActionComplete, repository.TripPatch{
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	// Side effects after the authoritative commit: none of these can roll
	// back the completion.
	s.reconcileDriver(ctx, completed.DriverID)
	s.invalidateCache(ctx, completed.ID)

	if s.invoiceService != nil && !completed.IsFacilityBooking() {
		if _, err := s.invoiceService.CreateForTrip(ctx, completed); err != nil {
			log.Printf("lifecycle: invoice for trip %s: %v", completed.ID, err)
		}
	}

	s.notifyTransition(ctx, completed, domain.ActionComplete, trip.Status, "")

	return &ActionResult{Trip: completed}, nil
}

// assignDriver attaches a driver to an upcoming trip. The per-driver Redis
// lock keeps two dispatchers from racing an assignment to the same driver;
// the trip-side compare-and-swap still decides the winner on the trip row.
func (s *LifecycleService) assignDriver(ctx context.Context, trip *domain.Trip, opts ActionOptions) (*ActionResult, error) {
	if opts.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if _, ok := domain.NextStatus(trip.Status, domain.ActionAssignDriver); !ok {
		return nil, ErrInvalidTransition
	}

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireDriverLock(ctx, opts.DriverID, assignmentLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrDriverAssignmentBusy
		}
		defer func() {
			_ = s.lockStore.ReleaseDriverLock(ctx, opts.DriverID)
		}()
	}

	driver, err := s.driverRepo.GetByID(ctx, opts.DriverID)
	if err != nil {
		return nil, err
	}
	if driver.Status == domain.DriverStatusInactive {
		return nil, ErrDriverInactive
	}

	// A driver may carry more than one active trip; AVAILABLE -> ON_TRIP is
	// only needed on the first.
	if err := s.driverRepo.ConditionalSetOnTrip(ctx, opts.DriverID); err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		return nil, err
	}

	// Assignment keeps the trip UPCOMING unless the driver has to confirm.
	target := domain.TripStatusUpcoming
	if opts.RequireAcceptance {
		target = domain.TripStatusAwaitingDriverAcceptance
	}

	updated, err := s.tripRepo.ConditionalUpdate(ctx, trip.ID, trip.Status, repository.TripPatch{
		Status:   target,
		DriverID: &opts.DriverID,
	})
	if err != nil {
		// Undo the driver flip if no active trip holds them.
		s.reconcileDriver(ctx, opts.DriverID)
		return nil, s.mapRepoError(err)
	}

	// A reassignment releases the previous driver if this was their only
	// active trip.
	if prev := trip.DriverID; prev != "" && prev != opts.DriverID {
		s.reconcileDriver(ctx, prev)
	}

	s.invalidateCache(ctx, updated.ID)
	s.notifyTransition(ctx, updated, domain.ActionAssignDriver, trip.Status, "")

	return &ActionResult{Trip: updated}, nil
}

// start moves an upcoming or acceptance-pending trip into progress.
func (s *LifecycleService) start(ctx context.Context, trip *domain.Trip) (*ActionResult, error) {
	started, err := s.transition(ctx, trip, domain.ActionStart, repository.TripPatch{})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, started.ID)
	s.notifyTransition(ctx, started, domain.ActionStart, trip.Status, "")

	return &ActionResult{Trip: started}, nil
}

// transition looks the move up in the table and applies it as a
// compare-and-swap keyed on the status the caller observed.
func (s *LifecycleService) transition(ctx context.Context, trip *domain.Trip, action domain.Action, patch repository.TripPatch) (*domain.Trip, error) {
	next, ok := domain.NextStatus(trip.Status, action)
	if !ok {
		return nil, ErrInvalidTransition
	}

	patch.Status = next
	updated, err := s.tripRepo.ConditionalUpdate(ctx, trip.ID, trip.Status, patch)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return updated, nil
}

// reconcileDriver flips the driver back to AVAILABLE when no active trip
// references them. The repository's conditional update carries the guard,
// so a concurrent assignment cannot be clobbered. Failures are logged and
// never block the primary transition; the same conditional logic repairs
// the row on the next transition or audit sweep.
func (s *LifecycleService) reconcileDriver(ctx context.Context, driverID string) {
	if driverID == "" {
		return
	}

	err := s.driverRepo.ConditionalSetAvailable(ctx, driverID)
	if err != nil && !errors.Is(err, repository.ErrStatusConflict) && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("lifecycle: reconciling driver %s: %v", driverID, err)
	}
}

func (s *LifecycleService) notifyTransition(ctx context.Context, trip *domain.Trip, action domain.Action, previous domain.TripStatus, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.TripTransitioned(ctx, TransitionEvent{
		Trip:           trip,
		Action:         action,
		PreviousStatus: previous,
		Reason:         reason,
	})
}

func (s *LifecycleService) invalidateCache(ctx context.Context, tripID string) {
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateTrip(ctx, tripID)
	}
}

func (s *LifecycleService) mapRepoError(err error) error {
	if errors.Is(err, repository.ErrStatusConflict) {
		return ErrConflictingTransition
	}
	return err
}

// CreateTripRequest contains the parameters for creating a trip.
type CreateTripRequest struct {
	RiderID         string
	FacilityID      string
	ManagedClientID string
	Price           float64
	PickupAddress   string
	DropoffAddress  string
	PickupAt        time.Time
}

// CreateTrip creates a trip in PENDING. The rider-XOR-facility rule is
// enforced here, at write time, so dual-linked rows can never reach the
// store.
func (s *LifecycleService) CreateTrip(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	trip := &domain.Trip{
		ID:              uuid.New().String(),
		RiderID:         req.RiderID,
		FacilityID:      req.FacilityID,
		ManagedClientID: req.ManagedClientID,
		Status:          domain.TripStatusPending,
		Price:           req.Price,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		PickupAddress:   req.PickupAddress,
		DropoffAddress:  req.DropoffAddress,
		PickupAt:        req.PickupAt,
		CreatedAt:       time.Now(),
	}

	if err := trip.Validate(); err != nil {
		return nil, err
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// GetTrip retrieves a trip by ID, serving cached reads when possible.
func (s *LifecycleService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	if s.cacheStore != nil {
		if cached, err := s.cacheStore.GetTrip(ctx, tripID); err == nil && cached != nil {
			return cached, nil
		}
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetTrip(ctx, trip)
	}

	return trip, nil
}

// ListTrips retrieves trips, optionally filtered by status.
func (s *LifecycleService) ListTrips(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	return s.tripRepo.List(ctx, status)
}

// SendPaymentReminder records a reminder for a trip parked on a declined
// payment. The counter is capped and incremented with the same
// conditional-update discipline as status transitions.
func (s *LifecycleService) SendPaymentReminder(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if trip.Status != domain.TripStatusPaymentFailed || trip.PaymentFailureReason != domain.PaymentFailureDeclined {
		return nil, ErrReminderNotApplicable
	}
	if trip.PaymentReminderCount >= domain.MaxPaymentReminders {
		return nil, ErrReminderLimit
	}

	count := trip.PaymentReminderCount + 1
	updated, err := s.tripRepo.ConditionalUpdate(ctx, trip.ID, trip.Status, repository.TripPatch{
		Status:               trip.Status,
		PaymentReminderCount: &count,
	})
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	if s.notifier != nil {
		s.notifier.PaymentReminder(ctx, updated)
	}

	return updated, nil
}

// PurgeTrip hard-deletes a trip and cascades to its invoices. Admin only.
func (s *LifecycleService) PurgeTrip(ctx context.Context, tripID string, actorRole domain.Role) error {
	if tripID == "" {
		return ErrInvalidTripID
	}
	if actorRole != domain.RoleAdmin {
		return ErrRoleNotAllowed
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return err
	}

	if s.invoiceService != nil {
		if err := s.invoiceService.DeleteForTrip(ctx, tripID); err != nil {
			return err
		}
	}

	if err := s.tripRepo.Delete(ctx, tripID); err != nil {
		return err
	}

	s.reconcileDriver(ctx, trip.DriverID)
	s.invalidateCache(ctx, tripID)

	return nil
}
