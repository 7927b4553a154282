package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	// PermOccupancyRead allows reading location occupancy and the live feed.
	PermOccupancyRead Permission = "occupancy:read"

	// PermOccupancyCommand allows trigger, hold, release, vacate, lock and unlock.
	PermOccupancyCommand Permission = "occupancy:command"

	// PermOccupancyOverride allows unlock_all and vacate_area, which can
	// clear other sources' locks.
	PermOccupancyOverride Permission = "occupancy:override"

	// PermAuditRead allows reading the command audit trail.
	PermAuditRead Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RolePanel: {
		PermOccupancyRead,
	},
	RoleUser: {
		PermOccupancyRead,
		PermOccupancyCommand,
	},
	RoleAdmin: {
		PermOccupancyRead,
		PermOccupancyCommand,
		PermOccupancyOverride,
		PermAuditRead,
	},
	RoleOwner: {
		PermOccupancyRead,
		PermOccupancyCommand,
		PermOccupancyOverride,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}
