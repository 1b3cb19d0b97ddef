package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository. Conditional
// updates take the same lock as reads so concurrent callers observe the same
// winner-takes-all behavior as the SQL implementation.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount            int32
	ConditionalUpdateCallCount int32
	DeleteCallCount            int32

	// Error injection
	CreateError            error
	GetError               error
	ConditionalUpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

// GetTrip returns a trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil
	}
	copy := *trip
	return &copy
}

// CountTrips returns how many trips are stored.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) List(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0, len(m.trips))
	for _, trip := range m.trips {
		if status != "" && trip.Status != status {
			continue
		}
		copy := *trip
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockTripRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.TripStatus, patch repository.TripPatch) (*domain.Trip, error) {
	atomic.AddInt32(&m.ConditionalUpdateCallCount, 1)
	if m.ConditionalUpdateError != nil {
		return nil, m.ConditionalUpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if trip.Status != expected {
		return nil, repository.ErrStatusConflict
	}

	trip.Status = patch.Status
	if patch.DriverID != nil {
		trip.DriverID = *patch.DriverID
	}
	if patch.PaymentStatus != nil {
		trip.PaymentStatus = *patch.PaymentStatus
	}
	if patch.PaymentFailureReason != nil {
		trip.PaymentFailureReason = *patch.PaymentFailureReason
	}
	if patch.PaymentRetryCount != nil {
		trip.PaymentRetryCount = *patch.PaymentRetryCount
	}
	if patch.PaymentReminderCount != nil {
		trip.PaymentReminderCount = *patch.PaymentReminderCount
	}
	if patch.CompletedAt != nil {
		at := *patch.CompletedAt
		trip.CompletedAt = &at
	}
	if patch.CancelReason != nil {
		trip.CancelReason = *patch.CancelReason
	}

	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) CountActiveByDriverID(ctx context.Context, driverID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countActiveLocked(driverID), nil
}

func (m *MockTripRepository) countActiveLocked(driverID string) int {
	count := 0
	for _, trip := range m.trips {
		if trip.DriverID == driverID && trip.Status.IsActive() {
			count++
		}
	}
	return count
}

func (m *MockTripRepository) SumCompletedByFacilityMonth(ctx context.Context, facilityID, month string) (float64, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	count := 0
	for _, trip := range m.trips {
		if trip.FacilityID != facilityID || trip.Status != domain.TripStatusCompleted || trip.CompletedAt == nil {
			continue
		}
		if trip.CompletedAt.Format("2006-01") != month {
			continue
		}
		total += trip.Price
		count++
	}
	return total, count, nil
}

func (m *MockTripRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.trips, id)
	return nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository. The
// conditional setters consult the linked trip repository so the
// no-active-trips guard behaves like the SQL NOT EXISTS clause.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// tripRepo backs the active-trips guard. May be nil, in which case the
	// guard always passes.
	tripRepo *MockTripRepository

	// Counters for verification
	SetOnTripCallCount    int32
	SetAvailableCallCount int32

	// Error injection
	SetAvailableError error
}

// NewMockDriverRepository creates a new mock driver repository. tripRepo may
// be nil when the test never exercises the availability guard.
func NewMockDriverRepository(tripRepo *MockTripRepository) *MockDriverRepository {
	return &MockDriverRepository{
		drivers:  make(map[string]*domain.Driver),
		tripRepo: tripRepo,
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// GetDriver returns a driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil
	}
	copy := *driver
	return &copy
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Email == email {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

func (m *MockDriverRepository) ConditionalSetOnTrip(ctx context.Context, id string) error {
	atomic.AddInt32(&m.SetOnTripCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if driver.Status != domain.DriverStatusAvailable {
		return repository.ErrStatusConflict
	}
	driver.Status = domain.DriverStatusOnTrip
	return nil
}

func (m *MockDriverRepository) ConditionalSetAvailable(ctx context.Context, id string) error {
	atomic.AddInt32(&m.SetAvailableCallCount, 1)
	if m.SetAvailableError != nil {
		return m.SetAvailableError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if driver.Status != domain.DriverStatusOnTrip {
		return repository.ErrStatusConflict
	}
	if m.tripRepo != nil {
		m.tripRepo.mu.RLock()
		active := m.tripRepo.countActiveLocked(id)
		m.tripRepo.mu.RUnlock()
		if active > 0 {
			return repository.ErrStatusConflict
		}
	}
	driver.Status = domain.DriverStatusAvailable
	return nil
}

func (m *MockDriverRepository) ListStatusMismatches(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Driver
	for _, d := range m.drivers {
		active := 0
		if m.tripRepo != nil {
			m.tripRepo.mu.RLock()
			active = m.tripRepo.countActiveLocked(d.ID)
			m.tripRepo.mu.RUnlock()
		}
		mismatched := (d.Status == domain.DriverStatusOnTrip && active == 0) ||
			(d.Status == domain.DriverStatusAvailable && active > 0)
		if mismatched {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK INVOICE REPOSITORY
// ──────────────────────────────────────────────

// MockInvoiceRepository is a mock implementation of InvoiceRepository.
type MockInvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[string]*domain.Invoice

	CreateCallCount int32
	CreateError     error
}

// NewMockInvoiceRepository creates a new mock invoice repository.
func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{
		invoices: make(map[string]*domain.Invoice),
	}
}

// AddInvoice adds an invoice to the mock repository.
func (m *MockInvoiceRepository) AddInvoice(invoice *domain.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[invoice.ID] = invoice
}

// GetInvoice returns an invoice for test assertions.
func (m *MockInvoiceRepository) GetInvoice(id string) *domain.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	invoice, ok := m.invoices[id]
	if !ok {
		return nil
	}
	copy := *invoice
	return &copy
}

// CountInvoices returns how many invoices are stored.
func (m *MockInvoiceRepository) CountInvoices() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.invoices)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *invoice
	m.invoices[invoice.ID] = &copy
	return nil
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *invoice
	return &copy, nil
}

func (m *MockInvoiceRepository) GetByFacilityMonth(ctx context.Context, facilityID, month string) (*domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.FacilityID == facilityID && inv.Month == month {
			copy := *inv
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockInvoiceRepository) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Invoice
	for _, inv := range m.invoices {
		if status != "" && inv.Status != status {
			continue
		}
		copy := *inv
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockInvoiceRepository) ConditionalUpdateStatus(ctx context.Context, id string, expected, status domain.InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice, ok := m.invoices[id]
	if !ok {
		return repository.ErrNotFound
	}
	if invoice.Status != expected {
		return repository.ErrStatusConflict
	}
	invoice.Status = status
	return nil
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, inv := range m.invoices {
		if inv.Status == domain.InvoiceStatusSent && inv.DueAt.Before(cutoff) {
			inv.Status = domain.InvoiceStatusOverdue
			count++
		}
	}
	return count, nil
}

func (m *MockInvoiceRepository) DeleteByTripID(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, inv := range m.invoices {
		if inv.TripID == tripID {
			delete(m.invoices, id)
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION / PROFILE REPOSITORIES
// ──────────────────────────────────────────────

// MockNotificationRepository is a mock implementation of
// NotificationRepository.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications []*domain.Notification
}

// NewMockNotificationRepository creates a new mock notification repository.
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

// All returns the stored notifications for test assertions.
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *n
	m.notifications = append(m.notifications, &stored)
	return nil
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		copy := *n
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// MockProfileRepository is a mock implementation of ProfileRepository.
type MockProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

// NewMockProfileRepository creates a new mock profile repository.
func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{
		profiles: make(map[string]*domain.Profile),
	}
}

// AddProfile adds a profile to the mock repository.
func (m *MockProfileRepository) AddProfile(profile *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = profile
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *profile
	return &copy, nil
}

func (m *MockProfileRepository) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, p := range m.profiles {
		if p.Role == role {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *MockProfileRepository) ListIDsByFacility(ctx context.Context, facilityID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, p := range m.profiles {
		if p.FacilityID == facilityID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT GATEWAY
// ──────────────────────────────────────────────

// MockPaymentGateway is a programmable payment gateway. The default result
// is a successful capture.
type MockPaymentGateway struct {
	mu sync.Mutex

	// Result and Err program the next captures. Err takes precedence.
	Result *service.CaptureResult
	Err    error

	CaptureCallCount int32
}

// NewMockPaymentGateway creates a gateway that captures successfully.
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) Capture(ctx context.Context, tripID string) (*service.CaptureResult, error) {
	atomic.AddInt32(&m.CaptureCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		result := *m.Result
		return &result, nil
	}
	return &service.CaptureResult{Captured: true}, nil
}

// Captures returns how many capture calls were made.
func (m *MockPaymentGateway) Captures() int {
	return int(atomic.LoadInt32(&m.CaptureCallCount))
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER / PUSH SENDER
// ──────────────────────────────────────────────

// MockNotifier records transition events synchronously so tests can assert
// fan-out without waiting on goroutines.
type MockNotifier struct {
	mu        sync.Mutex
	events    []service.TransitionEvent
	reminders []string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) TripTransitioned(ctx context.Context, event service.TransitionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockNotifier) PaymentReminder(ctx context.Context, trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, trip.ID)
}

// Events returns the recorded transition events.
func (m *MockNotifier) Events() []service.TransitionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]service.TransitionEvent, len(m.events))
	copy(result, m.events)
	return result
}

// Reminders returns the trip IDs that got a payment reminder.
func (m *MockNotifier) Reminders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.reminders))
	copy(result, m.reminders)
	return result
}

// MockPushSender records pushes for fan-out tests.
type MockPushSender struct {
	mu     sync.Mutex
	pushes []MockPush

	PushError error
}

// MockPush is one recorded push delivery.
type MockPush struct {
	Recipients []string
	Title      string
	Message    string
	DedupeKey  string
}

// NewMockPushSender creates a new mock push sender.
func NewMockPushSender() *MockPushSender {
	return &MockPushSender{}
}

func (m *MockPushSender) Push(ctx context.Context, recipientIDs []string, title, message, dedupeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushError != nil {
		return m.PushError
	}
	m.pushes = append(m.pushes, MockPush{
		Recipients: recipientIDs,
		Title:      title,
		Message:    message,
		DedupeKey:  dedupeKey,
	})
	return nil
}

// Pushes returns the recorded pushes.
func (m *MockPushSender) Pushes() []MockPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockPush, len(m.pushes))
	copy(result, m.pushes)
	return result
}
