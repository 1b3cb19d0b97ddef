package domain

// DriverStatus represents a driver's current dispatchability.
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusOnTrip    DriverStatus = "ON_TRIP"
	DriverStatusInactive  DriverStatus = "INACTIVE"
)

// Driver represents a driver profile. Status is derived state owned by the
// lifecycle coordinator: a driver is ON_TRIP if and only if at least one
// trip references them with an active status.
type Driver struct {
	ID     string
	Name   string
	Phone  string
	Email  string
	Status DriverStatus
}
