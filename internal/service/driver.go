package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DriverService handles driver administration and the defensive status
// audit. Availability flips on the happy path belong to the lifecycle
// coordinator, not here.
type DriverService struct {
	driverRepo repository.DriverRepository
	tripRepo   repository.TripRepository
	cacheStore *redis.CacheStore
}

// NewDriverService creates a new DriverService.
func NewDriverService(driverRepo repository.DriverRepository, tripRepo repository.TripRepository, cacheStore *redis.CacheStore) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		tripRepo:   tripRepo,
		cacheStore: cacheStore,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name  string
	Phone string
	Email string
}

// Register adds a new driver, available by default.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.Email != "" {
		existing, err := s.driverRepo.GetByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDriverAlreadyRegistered
		}
	}

	driver := &domain.Driver{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Status: domain.DriverStatusAvailable,
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	return driver, nil
}

// GetDriver retrieves a driver by ID, serving cached reads when possible.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if s.cacheStore != nil {
		if cached, err := s.cacheStore.GetDriver(ctx, driverID); err == nil && cached != nil {
			return cached, nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, driver)
	}

	return driver, nil
}

// GetAllDrivers retrieves all drivers.
func (s *DriverService) GetAllDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}

// Deactivate takes a driver out of the dispatchable pool.
func (s *DriverService) Deactivate(ctx context.Context, driverID string) error {
	return s.setStatus(ctx, driverID, domain.DriverStatusInactive)
}

// Activate returns an inactive driver to the pool.
func (s *DriverService) Activate(ctx context.Context, driverID string) error {
	return s.setStatus(ctx, driverID, domain.DriverStatusAvailable)
}

func (s *DriverService) setStatus(ctx context.Context, driverID string, status domain.DriverStatus) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, status); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}
	return nil
}

// AuditResult reports one repaired driver from the audit sweep.
type AuditResult struct {
	DriverID   string              `json:"driver_id"`
	WasStatus  domain.DriverStatus `json:"was_status"`
	NowStatus  domain.DriverStatus `json:"now_status"`
	ActiveTrip int                 `json:"active_trips"`
}

// AuditStatuses repairs drivers whose ON_TRIP flag disagrees with their
// active trips. The lifecycle coordinator keeps the invariant in-line; this
// sweep only catches drift introduced by out-of-band writes and is safe to
// run at any time because every repair is a guarded conditional update.
func (s *DriverService) AuditStatuses(ctx context.Context) ([]AuditResult, error) {
	mismatched, err := s.driverRepo.ListStatusMismatches(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]AuditResult, 0, len(mismatched))
	for _, driver := range mismatched {
		active, err := s.tripRepo.CountActiveByDriverID(ctx, driver.ID)
		if err != nil {
			log.Printf("driver audit: counting active trips for %s: %v", driver.ID, err)
			continue
		}

		result := AuditResult{DriverID: driver.ID, WasStatus: driver.Status, ActiveTrip: active}
		switch {
		case driver.Status == domain.DriverStatusOnTrip && active == 0:
			if err := s.driverRepo.ConditionalSetAvailable(ctx, driver.ID); err != nil {
				if !errors.Is(err, repository.ErrStatusConflict) {
					log.Printf("driver audit: repairing %s: %v", driver.ID, err)
				}
				continue
			}
			result.NowStatus = domain.DriverStatusAvailable
		case driver.Status == domain.DriverStatusAvailable && active > 0:
			if err := s.driverRepo.ConditionalSetOnTrip(ctx, driver.ID); err != nil {
				if !errors.Is(err, repository.ErrStatusConflict) {
					log.Printf("driver audit: repairing %s: %v", driver.ID, err)
				}
				continue
			}
			result.NowStatus = domain.DriverStatusOnTrip
		default:
			continue
		}

		if s.cacheStore != nil {
			_ = s.cacheStore.InvalidateDriver(ctx, driver.ID)
		}
		results = append(results, result)
	}

	return results, nil
}
