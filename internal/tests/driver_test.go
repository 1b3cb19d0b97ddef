package tests

import (
	"context"
	"errors"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestRegister_RejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := service.NewDriverService(driverRepo, tripRepo, nil)

	first, err := svc.Register(context.Background(), service.RegisterDriverRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != domain.DriverStatusAvailable {
		t.Errorf("new drivers must start %s, got %s", domain.DriverStatusAvailable, first.Status)
	}

	_, err = svc.Register(context.Background(), service.RegisterDriverRequest{
		Name:  "Ada Again",
		Email: "ada@example.com",
	})
	if !errors.Is(err, service.ErrDriverAlreadyRegistered) {
		t.Fatalf("expected ErrDriverAlreadyRegistered, got %v", err)
	}
}

func TestActivateDeactivate_RoundTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := service.NewDriverService(driverRepo, tripRepo, nil)

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable})

	if err := svc.Deactivate(context.Background(), "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusInactive {
		t.Error("expected driver INACTIVE after deactivation")
	}

	if err := svc.Activate(context.Background(), "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusAvailable {
		t.Error("expected driver AVAILABLE after activation")
	}
}

func TestAuditStatuses_RepairsDrift(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := service.NewDriverService(driverRepo, tripRepo, nil)

	// Stuck ON_TRIP with no active trips.
	driverRepo.AddDriver(&domain.Driver{ID: "driver-stuck", Status: domain.DriverStatusOnTrip})

	// Marked AVAILABLE while an active trip references them.
	driverRepo.AddDriver(&domain.Driver{ID: "driver-busy", Status: domain.DriverStatusAvailable})
	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusInProgress
	trip.DriverID = "driver-busy"
	tripRepo.AddTrip(trip)

	// Consistent driver stays untouched.
	driverRepo.AddDriver(&domain.Driver{ID: "driver-ok", Status: domain.DriverStatusAvailable})

	results, err := svc.AuditStatuses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 repairs, got %d", len(results))
	}

	if driverRepo.GetDriver("driver-stuck").Status != domain.DriverStatusAvailable {
		t.Error("stuck driver must be repaired to AVAILABLE")
	}
	if driverRepo.GetDriver("driver-busy").Status != domain.DriverStatusOnTrip {
		t.Error("busy driver must be repaired to ON_TRIP")
	}
	if driverRepo.GetDriver("driver-ok").Status != domain.DriverStatusAvailable {
		t.Error("consistent driver must not change")
	}
}

func TestAuditStatuses_NoDriftNoRepairs(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository(tripRepo)
	svc := service.NewDriverService(driverRepo, tripRepo, nil)

	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOnTrip})
	trip := pendingTrip("trip-1")
	trip.Status = domain.TripStatusUpcoming
	trip.DriverID = "driver-1"
	tripRepo.AddTrip(trip)

	results, err := svc.AuditStatuses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no repairs, got %d", len(results))
	}
}
