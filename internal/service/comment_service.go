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

const commentPreviewLength = 120

// CommentService manages the ticket conversation thread, including
// internal notes visible only to staff.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	timeout    time.Duration
	now        func() time.Time
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Timeout     time.Duration
	Clock       func() time.Time
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &CommentService{
		comments:   deps.CommentRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		timeout:    deps.Timeout,
		now:        now,
	}
}

// Add appends a comment to a ticket. End users may only comment on their
// own tickets and never internally; closed tickets accept no comments.
func (s *CommentService) Add(ctx context.Context, principal domain.Principal, ticketID, body string, internal bool) (*domain.Comment, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if internal && !principal.IsStaff() {
		return nil, apperrors.NewForbidden("internal notes are staff only")
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewTerminalState(ticket.ID)
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		AuthorID:   principal.UserID,
		AuthorRole: principal.Role,
		Body:       body,
		Internal:   internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishCommentAdded(ctx, principal, comment)
	return comment, nil
}

// List returns a ticket's comments in chronological order. Internal notes
// are filtered out of end-user views at the query level, so the requester
// never receives them in any payload.
func (s *CommentService) List(ctx context.Context, principal domain.Principal, ticketID string) ([]domain.Comment, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID, principal.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// Delete removes a comment. Admin only.
func (s *CommentService) Delete(ctx context.Context, principal domain.Principal, ticketID, commentID string) error {
	if !principal.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if err := s.comments.Delete(ctx, commentID, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ResolveWithComment transitions a ticket to the target terminal-bound
// status and posts the resolution text as a public comment in the same
// transaction, so either both land or neither does.
func (s *CommentService) ResolveWithComment(ctx context.Context, principal domain.Principal, ticketID string, next domain.TicketStatus, resolution string) (*domain.Ticket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	if !domain.RequiresResolution(next) {
		return nil, apperrors.NewValidationError("status does not take a resolution",
			map[string]any{"to": next})
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, apperrors.NewValidationError("resolution text required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsTerminal() {
		return nil, apperrors.NewTerminalState(ticket.ID)
	}
	if !domain.CanTransition(ticket.Status, next) {
		return nil, apperrors.NewValidationError("invalid status transition",
			map[string]any{"ticket_id": ticket.ID, "from": ticket.Status, "to": next})
	}

	oldStatus := ticket.Status
	ticket.Status = next
	ticket.Resolution = &resolution
	now := s.now()
	ticket.ResolvedAt = &now

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		AuthorID:   principal.UserID,
		AuthorRole: principal.Role,
		Body:       resolution,
		Internal:   false,
	}
	if err := s.tickets.CloseWithComment(ctx, ticket, oldStatus, comment); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConcurrencyConflict(ticket.ID)
		}
		return nil, apperrors.MapError(err)
	}

	s.recordStatusChange(ctx, principal, ticket.ID, oldStatus, next)
	s.publishCommentAdded(ctx, principal, comment)
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:  oldStatus,
			NewStatus:  next,
			Resolution: resolution,
		},
	})
	return ticket, nil
}

func (s *CommentService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *CommentService) recordStatusChange(ctx context.Context, principal domain.Principal, ticketID string, from, to domain.TicketStatus) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   principal.UserID,
		ChangedRole: principal.Role,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": from},
		NewValue:    map[string]any{"status": to},
	}
	_ = s.history.Create(ctx, entry)
}

func (s *CommentService) publishCommentAdded(ctx context.Context, principal domain.Principal, comment *domain.Comment) {
	preview := comment.Body
	if len(preview) > commentPreviewLength {
		preview = preview[:commentPreviewLength]
	}
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: comment.TicketID,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorRole:  comment.AuthorRole,
			Internal:    comment.Internal,
			BodyPreview: preview,
		},
	})
}

func (s *CommentService) publish(ctx context.Context, principal domain.Principal, event events.Event) {
	publishEvent(ctx, s.dispatcher, principal, s.now, event)
}
