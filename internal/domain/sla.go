package domain

import "time"

// SLAStatus is the point-in-time SLA readout for a single ticket.
type SLAStatus struct {
	SLAHours       int
	Deadline       time.Time
	HoursRemaining int
	Overdue        bool
}

// EvaluateSLA computes the SLA readout for a ticket at the given instant.
// The deadline is created_at plus the category's SLA hours. A ticket is
// overdue only while it sits in a non-terminal, unresolved status: reaching
// resolved or closed before the deadline is never retroactively undone by a
// later query. HoursRemaining is whole hours, sign-preserved, so callers can
// render "overdue by N hours" when negative.
func EvaluateSLA(ticket *Ticket, slaHours int, now time.Time) SLAStatus {
	deadline := ticket.CreatedAt.Add(time.Duration(slaHours) * time.Hour)
	active := ticket.Status != TicketStatusResolved && ticket.Status != TicketStatusClosed
	return SLAStatus{
		SLAHours:       slaHours,
		Deadline:       deadline,
		HoursRemaining: int(deadline.Sub(now).Hours()),
		Overdue:        active && now.After(deadline),
	}
}
