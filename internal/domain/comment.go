package domain

import "time"

// Comment is a remark on a ticket thread. Internal comments are visible to
// agent/admin readers only. Body and the internal flag are immutable once
// written; the only mutation is an admin hard delete.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Body       string
	Internal   bool
	CreatedAt  time.Time
}

// Attachment stores upload metadata attached to a ticket. Append-only.
type Attachment struct {
	ID          string
	TicketID    string
	FileName    string
	StoragePath string
	SizeBytes   int64
	CreatedAt   time.Time
}
