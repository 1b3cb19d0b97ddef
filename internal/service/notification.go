package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// TransitionEvent describes a completed trip transition for fan-out.
type TransitionEvent struct {
	Trip           *domain.Trip
	Action         domain.Action
	PreviousStatus domain.TripStatus
	Reason         string
}

// DedupeKey identifies the transition for downstream deduplication.
// Duplicate notifications on retried transitions are tolerable, but a
// stricter sender can drop repeats on this key.
func (e TransitionEvent) DedupeKey() string {
	return e.Trip.ID + ":" + string(e.Trip.Status)
}

// Notifier is the coordinator's view of notification fan-out. Calls never
// block the caller and never surface failures.
type Notifier interface {
	TripTransitioned(ctx context.Context, event TransitionEvent)
	PaymentReminder(ctx context.Context, trip *domain.Trip)
}

// PushSender delivers a push message to a set of recipients.
type PushSender interface {
	Push(ctx context.Context, recipientIDs []string, title, message, dedupeKey string) error
}

const notifyTimeout = 15 * time.Second

// NotificationService resolves recipients and delivers notifications: rows
// in the notifications table plus best-effort push. Failures are logged,
// never returned.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	profileRepo      repository.ProfileRepository
	push             PushSender
}

// NewNotificationService creates a new NotificationService. push may be nil
// when no push gateway is configured.
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	profileRepo repository.ProfileRepository,
	push PushSender,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		profileRepo:      profileRepo,
		push:             push,
	}
}

// TripTransitioned fans out a transition event. The work runs detached from
// the request so the coordinator's response is never held up; the request
// context is only used to inherit values, not its deadline.
func (s *NotificationService) TripTransitioned(ctx context.Context, event TransitionEvent) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		s.fanOut(detached, event)
	}()
}

func (s *NotificationService) fanOut(ctx context.Context, event TransitionEvent) {
	notificationType, title, message := describeTransition(event)

	recipients, err := s.resolveRecipients(ctx, event.Trip)
	if err != nil {
		log.Printf("notification: resolving recipients for trip %s: %v", event.Trip.ID, err)
		return
	}

	dedupeKey := event.DedupeKey()
	for _, recipientID := range recipients {
		n := &domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: recipientID,
			Type:        notificationType,
			Title:       title,
			Message:     message,
			TripID:      event.Trip.ID,
			DedupeKey:   dedupeKey,
			CreatedAt:   time.Now(),
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			log.Printf("notification: storing for %s: %v", recipientID, err)
		}
	}

	if s.push != nil && len(recipients) > 0 {
		if err := s.push.Push(ctx, recipients, title, message, dedupeKey); err != nil {
			log.Printf("notification: push for trip %s: %v", event.Trip.ID, err)
		}
	}
}

// resolveRecipients gathers the dispatcher/admin group, the booking party,
// and facility staff when the trip belongs to a facility.
func (s *NotificationService) resolveRecipients(ctx context.Context, trip *domain.Trip) ([]string, error) {
	seen := make(map[string]bool)
	var recipients []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id != "" && !seen[id] {
				seen[id] = true
				recipients = append(recipients, id)
			}
		}
	}

	dispatchers, err := s.profileRepo.ListIDsByRole(ctx, domain.RoleDispatcher)
	if err != nil {
		return nil, err
	}
	add(dispatchers...)

	admins, err := s.profileRepo.ListIDsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	add(admins...)

	if trip.IsFacilityBooking() {
		staff, err := s.profileRepo.ListIDsByFacility(ctx, trip.FacilityID)
		if err != nil {
			return nil, err
		}
		add(staff...)
	} else {
		add(trip.RiderID)
	}

	add(trip.DriverID)

	return recipients, nil
}

// describeTransition builds the user-facing text for a transition.
func describeTransition(event TransitionEvent) (domain.NotificationType, string, string) {
	trip := event.Trip
	switch trip.Status {
	case domain.TripStatusUpcoming:
		if event.Action == domain.ActionAssignDriver {
			return domain.NotificationDriverAssigned, "Driver Assigned",
				fmt.Sprintf("A driver has been assigned to trip %s", trip.ID)
		}
		return domain.NotificationTripApproved, "Trip Approved",
			fmt.Sprintf("Trip %s was approved and payment of $%.2f received", trip.ID, trip.Price)
	case domain.TripStatusAwaitingDriverAcceptance:
		return domain.NotificationDriverAssigned, "Driver Assignment Pending",
			fmt.Sprintf("Trip %s is waiting for the driver to accept", trip.ID)
	case domain.TripStatusInProgress:
		return domain.NotificationTripStarted, "Trip Started",
			fmt.Sprintf("Trip %s is under way", trip.ID)
	case domain.TripStatusCompleted:
		return domain.NotificationTripCompleted, "Trip Completed",
			fmt.Sprintf("Trip %s has been completed", trip.ID)
	case domain.TripStatusCancelled:
		if event.Action == domain.ActionReject {
			return domain.NotificationTripRejected, "Trip Rejected",
				rejectMessage(trip.ID, event.Reason)
		}
		return domain.NotificationTripCancelled, "Trip Cancelled",
			rejectMessage(trip.ID, event.Reason)
	case domain.TripStatusPaymentFailed:
		if trip.PaymentFailureReason == domain.PaymentFailureGatewayError {
			return domain.NotificationPaymentFailed, "Payment Needs Retry",
				fmt.Sprintf("Payment for trip %s could not reach the payment provider", trip.ID)
		}
		return domain.NotificationPaymentFailed, "Payment Declined",
			fmt.Sprintf("Payment of $%.2f for trip %s was declined", trip.Price, trip.ID)
	default:
		return domain.NotificationTripApproved, "Trip Updated",
			fmt.Sprintf("Trip %s is now %s", trip.ID, trip.Status)
	}
}

func rejectMessage(tripID, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Trip %s was cancelled", tripID)
	}
	return fmt.Sprintf("Trip %s was cancelled: %s", tripID, reason)
}

// PaymentReminder notifies the booking party that payment is still owed.
func (s *NotificationService) PaymentReminder(ctx context.Context, trip *domain.Trip) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()

		recipients := []string{trip.RiderID}
		if trip.IsFacilityBooking() {
			staff, err := s.profileRepo.ListIDsByFacility(detached, trip.FacilityID)
			if err != nil {
				log.Printf("notification: resolving facility staff for trip %s: %v", trip.ID, err)
				return
			}
			recipients = staff
		}

		dedupeKey := fmt.Sprintf("%s:reminder:%d", trip.ID, trip.PaymentReminderCount)
		title := "Payment Reminder"
		message := fmt.Sprintf("Payment of $%.2f for trip %s is still outstanding", trip.Price, trip.ID)
		for _, recipient := range recipients {
			n := &domain.Notification{
				ID:          uuid.New().String(),
				RecipientID: recipient,
				Type:        domain.NotificationPaymentReminder,
				Title:       title,
				Message:     message,
				TripID:      trip.ID,
				DedupeKey:   dedupeKey,
				CreatedAt:   time.Now(),
			}
			if err := s.notificationRepo.Create(detached, n); err != nil {
				log.Printf("notification: payment reminder for trip %s: %v", trip.ID, err)
			}
		}
		if s.push != nil && len(recipients) > 0 {
			if err := s.push.Push(detached, recipients, title, message, dedupeKey); err != nil {
				log.Printf("notification: reminder push for trip %s: %v", trip.ID, err)
			}
		}
	}()
}

// Ensure NotificationService implements Notifier.
var _ Notifier = (*NotificationService)(nil)
