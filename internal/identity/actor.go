package identity

import "strings"

// Role is the coarse actor role used by the policy engine.
type Role string

const (
	// RoleOwner is a landlord operating the properties they own.
	RoleOwner Role = "owner"
	// RoleTenant is a renter attached to leases and payments.
	RoleTenant Role = "tenant"
	// RoleSystem is reserved for verified system-originated writes. It is
	// never encoded into an issued credential and never resolves from one.
	RoleSystem Role = "system"
)

// ParseRole validates an issuable role. RoleSystem is deliberately not
// issuable: credentials claiming it fail resolution.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleOwner:
		return RoleOwner, true
	case RoleTenant:
		return RoleTenant, true
	default:
		return "", false
	}
}

// Actor is the resolved, verified identity performing an operation. It is
// recomputed from the credential on every request and never persisted.
type Actor struct {
	ID            string
	Role          Role
	OwnedEntityID string
}

// IsSystem reports whether the actor runs on the elevated system path.
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

// SystemActor returns the internal identity used by the elevated-access
// gateway. It exists only in process memory; there is no credential for it.
func SystemActor() Actor {
	return Actor{ID: "system", Role: RoleSystem}
}
