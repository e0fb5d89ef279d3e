package domain

// Role enumerates caller roles recognized by the engine.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// IsValidRole reports whether the code belongs to the role enum.
func IsValidRole(role Role) bool {
	return role == RoleUser || role == RoleAgent || role == RoleAdmin
}

// Principal is the acting caller context, resolved by the auth layer and
// threaded explicitly into every engine call.
type Principal struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the principal may see internal material.
func (p Principal) IsStaff() bool {
	return p.Role == RoleAgent || p.Role == RoleAdmin
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
