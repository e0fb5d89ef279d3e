package domain

import "time"

// Category groups tickets and carries per-category policy: the default
// priority applied when a requester does not pick one, and the SLA window
// in hours. Categories are soft-deactivated, never hard-deleted while
// non-terminal tickets still reference them.
type Category struct {
	ID              string
	Name            string
	Description     string
	DefaultPriority TicketPriority
	SLAHours        int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
