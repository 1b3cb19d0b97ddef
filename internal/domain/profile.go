package domain

import "time"

// Role is an authenticated caller's role.
type Role string

const (
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
	RoleDriver     Role = "driver"
	RoleRider      Role = "rider"
	RoleFacility   Role = "facility"
)

// CanDispatch reports whether the role may apply lifecycle actions.
func (r Role) CanDispatch() bool {
	return r == RoleDispatcher || r == RoleAdmin
}

// Profile represents an account in the system. FacilityID is set for
// facility staff and is used to resolve facility-scoped notifications.
type Profile struct {
	ID         string
	Name       string
	Email      string
	Role       Role
	FacilityID string
	CreatedAt  time.Time
}
