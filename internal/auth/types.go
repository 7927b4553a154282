package auth

import "errors"

// Role represents an authorisation tier in the system.
type Role string

const (
	// RolePanel is a wall-mounted display device identity (not a user account).
	RolePanel Role = "panel"

	// RoleUser is a household member.
	RoleUser Role = "user"

	// RoleAdmin has full system control. Professional installer or
	// tech-savvy homeowner.
	RoleAdmin Role = "admin"

	// RoleOwner has everything admin can do. Emergency-only.
	RoleOwner Role = "owner"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RolePanel, RoleUser, RoleAdmin, RoleOwner}

// IsValidRole returns true if the role is known.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
)
