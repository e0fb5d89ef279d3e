package domain

import "time"

// User is an account that can act as requester, agent, or admin depending
// on its role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanBeAssignee reports whether tickets may be assigned to this user.
func (u *User) CanBeAssignee() bool {
	return u.IsActive && (u.Role == RoleAgent || u.Role == RoleAdmin)
}
