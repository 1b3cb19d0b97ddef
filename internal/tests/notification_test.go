package tests

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// waitFor polls until check passes or the deadline expires. The fan-out runs
// detached from the caller, so assertions have to wait for it.
func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func seedProfiles(profiles *MockProfileRepository) {
	profiles.AddProfile(&domain.Profile{ID: "dispatcher-1", Role: domain.RoleDispatcher})
	profiles.AddProfile(&domain.Profile{ID: "admin-1", Role: domain.RoleAdmin})
	profiles.AddProfile(&domain.Profile{ID: "staff-1", Role: domain.RoleFacility, FacilityID: "facility-1"})
	profiles.AddProfile(&domain.Profile{ID: "staff-2", Role: domain.RoleFacility, FacilityID: "facility-1"})
	profiles.AddProfile(&domain.Profile{ID: "other-staff", Role: domain.RoleFacility, FacilityID: "facility-9"})
}

func TestTripTransitioned_FacilityTripFansOutToStaff(t *testing.T) {
	t.Parallel()

	notifications := NewMockNotificationRepository()
	profiles := NewMockProfileRepository()
	push := NewMockPushSender()
	seedProfiles(profiles)
	svc := service.NewNotificationService(notifications, profiles, push)

	trip := &domain.Trip{
		ID:         "trip-1",
		FacilityID: "facility-1",
		Status:     domain.TripStatusCompleted,
		DriverID:   "driver-1",
	}
	svc.TripTransitioned(context.Background(), service.TransitionEvent{
		Trip:           trip,
		Action:         domain.ActionComplete,
		PreviousStatus: domain.TripStatusInProgress,
	})

	// dispatcher, admin, two facility staff, driver
	waitFor(t, func() bool { return len(notifications.All()) == 5 })

	recipients := make(map[string]bool)
	for _, n := range notifications.All() {
		recipients[n.RecipientID] = true
		if n.Type != domain.NotificationTripCompleted {
			t.Errorf("expected type %s, got %s", domain.NotificationTripCompleted, n.Type)
		}
		if n.DedupeKey != "trip-1:COMPLETED" {
			t.Errorf("expected dedupe key trip-1:COMPLETED, got %q", n.DedupeKey)
		}
	}
	for _, want := range []string{"dispatcher-1", "admin-1", "staff-1", "staff-2", "driver-1"} {
		if !recipients[want] {
			t.Errorf("expected %s among recipients", want)
		}
	}
	if recipients["other-staff"] {
		t.Error("staff of another facility must not be notified")
	}

	pushes := push.Pushes()
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push batch, got %d", len(pushes))
	}
	if pushes[0].DedupeKey != "trip-1:COMPLETED" {
		t.Errorf("push dedupe key mismatch: %q", pushes[0].DedupeKey)
	}
}

func TestTripTransitioned_IndividualTripNotifiesRider(t *testing.T) {
	t.Parallel()

	notifications := NewMockNotificationRepository()
	profiles := NewMockProfileRepository()
	profiles.AddProfile(&domain.Profile{ID: "dispatcher-1", Role: domain.RoleDispatcher})
	svc := service.NewNotificationService(notifications, profiles, nil)

	trip := &domain.Trip{
		ID:      "trip-1",
		RiderID: "rider-1",
		Status:  domain.TripStatusUpcoming,
		Price:   42.50,
	}
	svc.TripTransitioned(context.Background(), service.TransitionEvent{
		Trip:           trip,
		Action:         domain.ActionApprove,
		PreviousStatus: domain.TripStatusApprovedPendingPayment,
	})

	waitFor(t, func() bool { return len(notifications.All()) == 2 })

	got, err := notifications.ListByRecipient(context.Background(), "rider-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 rider notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationTripApproved {
		t.Errorf("expected type %s, got %s", domain.NotificationTripApproved, got[0].Type)
	}
}

func TestPaymentReminder_GoesToFacilityStaff(t *testing.T) {
	t.Parallel()

	notifications := NewMockNotificationRepository()
	profiles := NewMockProfileRepository()
	seedProfiles(profiles)
	svc := service.NewNotificationService(notifications, profiles, nil)

	trip := &domain.Trip{
		ID:                   "trip-1",
		FacilityID:           "facility-1",
		Status:               domain.TripStatusPaymentFailed,
		PaymentFailureReason: domain.PaymentFailureDeclined,
		PaymentReminderCount: 1,
		Price:                80,
	}
	svc.PaymentReminder(context.Background(), trip)

	waitFor(t, func() bool { return len(notifications.All()) == 2 })

	for _, n := range notifications.All() {
		if n.Type != domain.NotificationPaymentReminder {
			t.Errorf("expected type %s, got %s", domain.NotificationPaymentReminder, n.Type)
		}
		if n.RecipientID != "staff-1" && n.RecipientID != "staff-2" {
			t.Errorf("unexpected recipient %s", n.RecipientID)
		}
	}
}
