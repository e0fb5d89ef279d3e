package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                  string
	Number              string
	RequesterID         string
	CategoryID          string
	AssigneeID          *string
	Title               string
	Description         string
	Status              TicketStatus
	Priority            TicketPriority
	Source              string
	Resolution          *string
	SatisfactionRating  *int
	SatisfactionComment *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ResolvedAt          *time.Time
}

// IsTerminal reports whether the ticket accepts no further mutation.
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusClosed
}

// IsValidStatus reports whether the code belongs to the status enum.
func IsValidStatus(status TicketStatus) bool {
	switch status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsValidPriority reports whether the code belongs to the priority enum.
func IsValidPriority(priority TicketPriority) bool {
	switch priority {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress, TicketStatusOpen},
	TicketStatusClosed:     {},
}

// CanTransition reports whether the state machine allows current -> next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// RequiresResolution reports whether entering the status demands resolution text.
func RequiresResolution(next TicketStatus) bool {
	return next == TicketStatusResolved || next == TicketStatusClosed
}

// IsReopen reports whether the transition leaves resolved for an active state.
// Reopening clears resolved_at; the old resolution text is retained as history.
func IsReopen(current, next TicketStatus) bool {
	return current == TicketStatusResolved &&
		(next == TicketStatusOpen || next == TicketStatusInProgress)
}
