package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// SatisfactionService handles the post-resolution rating flow: rating a
// resolved ticket closes it in the same write.
type SatisfactionService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	timeout    time.Duration
	now        func() time.Time
}

// SatisfactionDependencies bundles collaborators.
type SatisfactionDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Timeout     time.Duration
	Clock       func() time.Time
}

// NewSatisfactionService constructs the service.
func NewSatisfactionService(deps SatisfactionDependencies) *SatisfactionService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &SatisfactionService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		timeout:    deps.Timeout,
		now:        now,
	}
}

// SubmitRating records a 1..5 rating from the ticket's requester and
// closes the ticket. The write is a single guarded UPDATE; when it misses,
// the ticket is re-read once to name the precise reason.
func (s *SatisfactionService) SubmitRating(ctx context.Context, principal domain.Principal, ticketID string, rating int, comment string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5",
			map[string]any{"rating": rating})
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.RequesterID != principal.UserID {
		return nil, apperrors.NewForbidden("only the requester may rate a ticket")
	}

	var commentPtr *string
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		commentPtr = &trimmed
	}

	if err := s.tickets.SubmitRating(ctx, ticketID, rating, commentPtr); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, s.classifyMiss(ctx, ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	ticket.SatisfactionRating = &rating
	ticket.SatisfactionComment = commentPtr

	s.record(ctx, principal, ticket.ID, rating, oldStatus)
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		Payload:  events.TicketRatedPayload{Rating: rating},
	})
	return ticket, nil
}

// classifyMiss inspects the current row to explain a guarded-update miss.
// The rating predicate requires status resolved with no prior rating, so
// the miss is one of: gone, already rated, closed, or simply not resolved.
func (s *SatisfactionService) classifyMiss(ctx context.Context, ticketID string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	if ticket.SatisfactionRating != nil {
		return apperrors.NewAlreadyRated(ticketID)
	}
	if ticket.Status == domain.TicketStatusClosed {
		return apperrors.NewTerminalState(ticketID)
	}
	return apperrors.NewValidationError("rating allowed only for resolved tickets",
		map[string]any{"ticket_id": ticketID, "status": ticket.Status})
}

func (s *SatisfactionService) record(ctx context.Context, principal domain.Principal, ticketID string, rating int, oldStatus domain.TicketStatus) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   principal.UserID,
		ChangedRole: principal.Role,
		ChangeType:  domain.ChangeTypeRating,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": domain.TicketStatusClosed, "rating": rating},
	}
	_ = s.history.Create(ctx, entry)
}

func (s *SatisfactionService) publish(ctx context.Context, principal domain.Principal, event events.Event) {
	publishEvent(ctx, s.dispatcher, principal, s.now, event)
}
