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

const maxTitleLength = 255

// requesterCloseResolution is the documented exception to the explicit
// resolution rule: a requester closing their own unresolved ticket supplies
// this fixed text instead of authoring one.
const requesterCloseResolution = "Closed by requester"

// FieldValidator validates a dynamic-field submission for a category.
type FieldValidator interface {
	ValidateSubmission(ctx context.Context, categoryID string, form map[string]any) ([]domain.FieldValue, error)
}

// LifecycleService is the ticket state machine: creation, assignment,
// status transitions, resolution, and SLA evaluation.
type LifecycleService struct {
	tickets     repository.TicketRepository
	categories  repository.CategoryRepository
	users       repository.UserRepository
	history     repository.TicketHistoryRepository
	attachments repository.AttachmentRepository
	validator   FieldValidator
	dispatcher  events.Dispatcher
	timeout     time.Duration
	now         func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo     repository.TicketRepository
	CategoryRepo   repository.CategoryRepository
	UserRepo       repository.UserRepository
	HistoryRepo    repository.TicketHistoryRepository
	AttachmentRepo repository.AttachmentRepository
	Validator      FieldValidator
	Dispatcher     events.Dispatcher
	Timeout        time.Duration
	Clock          func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		tickets:     deps.TicketRepo,
		categories:  deps.CategoryRepo,
		users:       deps.UserRepo,
		history:     deps.HistoryRepo,
		attachments: deps.AttachmentRepo,
		validator:   deps.Validator,
		dispatcher:  deps.Dispatcher,
		timeout:     deps.Timeout,
		now:         now,
	}
}

// AttachmentInput defines attachment metadata captured at creation.
type AttachmentInput struct {
	FileName    string
	StoragePath string
	SizeBytes   int64
}

// CreateInput describes ticket creation payload.
type CreateInput struct {
	CategoryID  string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Source      string
	Fields      map[string]any
	Attachments []AttachmentInput
}

// ListFilter describes listing parameters for staff views.
type ListFilter struct {
	CategoryID  *string
	AssigneeID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// OverdueTicket pairs a ticket with its SLA readout for dashboards.
type OverdueTicket struct {
	Ticket domain.Ticket
	SLA    domain.SLAStatus
}

// Create opens a new ticket. The category must be active; an omitted
// priority falls back to the category default, while an explicit code
// outside the enum is rejected rather than coerced. Dynamic field values
// and attachments persist atomically with the ticket row.
func (s *LifecycleService) Create(ctx context.Context, principal domain.Principal, input CreateInput) (*domain.Ticket, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if len(title) > maxTitleLength {
		return nil, apperrors.NewValidationError("title exceeds 255 characters",
			map[string]any{"length": len(title)})
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidCategory(input.CategoryID)
		}
		return nil, apperrors.MapError(err)
	}
	if !category.IsActive {
		return nil, apperrors.NewInvalidCategory(input.CategoryID)
	}

	priority := input.Priority
	if priority == "" {
		priority = category.DefaultPriority
	} else if !domain.IsValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority code",
			map[string]any{"priority": string(priority)})
	}

	var values []domain.FieldValue
	if s.validator != nil {
		values, err = s.validator.ValidateSubmission(ctx, category.ID, input.Fields)
		if err != nil {
			return nil, err
		}
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "web"
	}

	ticket := &domain.Ticket{
		RequesterID: principal.UserID,
		CategoryID:  category.ID,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Source:      source,
	}
	attachments := make([]domain.Attachment, 0, len(input.Attachments))
	for _, att := range input.Attachments {
		attachments = append(attachments, domain.Attachment{
			FileName:    att.FileName,
			StoragePath: att.StoragePath,
			SizeBytes:   att.SizeBytes,
		})
	}

	if err := s.tickets.Create(ctx, ticket, values, attachments); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			CategoryID: ticket.CategoryID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// Get fetches a ticket enforcing role-based access: end users see only
// their own tickets.
func (s *LifecycleService) Get(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListForRequester returns a requester's own tickets.
func (s *LifecycleService) ListForRequester(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Ticket, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: &principal.UserID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListForStaff returns tickets matching the filter for agent/admin views.
func (s *LifecycleService) ListForStaff(ctx context.Context, principal domain.Principal, filter ListFilter) ([]domain.Ticket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		CategoryID:  filter.CategoryID,
		AssigneeID:  filter.AssigneeID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Assign sets the ticket's assignee. The assignee must be an active agent
// or admin; reassignment is allowed in any state except closed. Assigning
// the current assignee again is a no-op that records nothing.
func (s *LifecycleService) Assign(ctx context.Context, principal domain.Principal, ticketID, assigneeID string) (*domain.Ticket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidAssignee(assigneeID)
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.CanBeAssignee() {
		return nil, apperrors.NewInvalidAssignee(assigneeID)
	}

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsTerminal() {
		return nil, apperrors.NewTerminalState(ticket.ID)
	}
	if ticket.AssigneeID != nil && *ticket.AssigneeID == assignee.ID {
		return ticket, nil
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.UpdateAssignee(ctx, ticket.ID, ticket.AssigneeID); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConcurrencyConflict(ticket.ID)
		}
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, principal, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": oldAssignee},
		map[string]any{"assignee_id": ticket.AssigneeID})
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: ticket.AssigneeID},
	})
	return ticket, nil
}

// UpdateStatus drives the state machine. Entering resolved or closed
// requires non-empty resolution text supplied atomically with the
// transition; reopening clears resolved_at while retaining the old text as
// history. A closed ticket rejects every transition.
func (s *LifecycleService) UpdateStatus(ctx context.Context, principal domain.Principal, ticketID string, next domain.TicketStatus, resolution string) (*domain.Ticket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ticket, next, resolution); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = next
	if err := s.tickets.UpdateStatus(ctx, ticket, oldStatus); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConcurrencyConflict(ticket.ID)
		}
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, principal, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": next})
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:  oldStatus,
			NewStatus:  next,
			Resolution: derefString(ticket.Resolution),
		},
	})
	return ticket, nil
}

// applyTransition validates the move and mutates resolution/resolved_at on
// the in-memory ticket. The status field itself is left to the caller so
// the expected value is still at hand for the compare-and-swap write.
func (s *LifecycleService) applyTransition(ticket *domain.Ticket, next domain.TicketStatus, resolution string) error {
	if !domain.IsValidStatus(next) {
		return apperrors.NewValidationError("unknown status code",
			map[string]any{"status": string(next)})
	}
	if ticket.IsTerminal() {
		return apperrors.NewTerminalState(ticket.ID)
	}
	if !domain.CanTransition(ticket.Status, next) {
		return apperrors.NewValidationError("invalid status transition",
			map[string]any{"ticket_id": ticket.ID, "from": ticket.Status, "to": next})
	}

	resolution = strings.TrimSpace(resolution)
	if domain.RequiresResolution(next) {
		if resolution == "" && derefString(ticket.Resolution) == "" {
			return apperrors.NewValidationError("resolution text required",
				map[string]any{"ticket_id": ticket.ID, "to": next})
		}
		if resolution != "" {
			ticket.Resolution = &resolution
		}
		now := s.now()
		ticket.ResolvedAt = &now
	}
	if domain.IsReopen(ticket.Status, next) {
		ticket.ResolvedAt = nil
	}
	return nil
}

// CloseAsRequester lets a ticket's owner close it. An unresolved ticket
// gets the fixed requester-close resolution text.
func (s *LifecycleService) CloseAsRequester(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != principal.UserID {
		return nil, apperrors.NewForbidden("access denied")
	}

	resolution := ""
	if derefString(ticket.Resolution) == "" {
		resolution = requesterCloseResolution
	}
	if err := s.applyTransition(ticket, domain.TicketStatusClosed, resolution); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	if err := s.tickets.UpdateStatus(ctx, ticket, oldStatus); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConcurrencyConflict(ticket.ID)
		}
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, principal, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": domain.TicketStatusClosed})
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:  oldStatus,
			NewStatus:  domain.TicketStatusClosed,
			Resolution: derefString(ticket.Resolution),
		},
	})
	return ticket, nil
}

// UpdatePriority changes ticket priority.
func (s *LifecycleService) UpdatePriority(ctx context.Context, principal domain.Principal, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	if !domain.IsValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority code",
			map[string]any{"priority": string(priority)})
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsTerminal() {
		return nil, apperrors.NewTerminalState(ticket.ID)
	}
	if ticket.Priority == priority {
		return ticket, nil
	}

	oldPriority := ticket.Priority
	ticket.Priority = priority
	if err := s.tickets.UpdatePriority(ctx, ticket.ID, priority); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConcurrencyConflict(ticket.ID)
		}
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, principal, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": priority})
	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketPriorityBump,
		TicketID: ticket.ID,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: priority,
		},
	})
	return ticket, nil
}

// CheckSLA computes the SLA readout for one ticket at the current instant.
func (s *LifecycleService) CheckSLA(ctx context.Context, principal domain.Principal, ticketID string) (domain.SLAStatus, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return domain.SLAStatus{}, err
	}
	category, err := s.categories.GetByID(ctx, ticket.CategoryID)
	if err != nil {
		return domain.SLAStatus{}, apperrors.MapError(err)
	}
	return domain.EvaluateSLA(ticket, category.SLAHours, s.now()), nil
}

// ListOverdue returns every non-terminal ticket past its SLA deadline.
// The bulk view applies the same EvaluateSLA predicate as CheckSLA at a
// single instant, so the two can never drift.
func (s *LifecycleService) ListOverdue(ctx context.Context, principal domain.Principal) ([]OverdueTicket, error) {
	if !principal.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	candidates, err := s.tickets.ListActiveWithSLA(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	var result []OverdueTicket
	for i := range candidates {
		sla := domain.EvaluateSLA(&candidates[i].Ticket, candidates[i].SLAHours, now)
		if sla.Overdue {
			result = append(result, OverdueTicket{Ticket: candidates[i].Ticket, SLA: sla})
		}
	}
	return result, nil
}

// Attachments returns the files captured at ticket creation.
func (s *LifecycleService) Attachments(ctx context.Context, principal domain.Principal, ticketID string) ([]domain.Attachment, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}
	if s.attachments == nil {
		return nil, nil
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachments, nil
}

// History returns the audit trail for a ticket.
func (s *LifecycleService) History(ctx context.Context, principal domain.Principal, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *LifecycleService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func requireTicketAccess(principal domain.Principal, ticket *domain.Ticket) error {
	if principal.IsStaff() || ticket.RequesterID == principal.UserID {
		return nil
	}
	return apperrors.NewForbidden("access denied")
}

func (s *LifecycleService) record(ctx context.Context, principal domain.Principal, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   principal.UserID,
		ChangedRole: principal.Role,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	_ = s.history.Create(ctx, entry)
}

func (s *LifecycleService) publish(ctx context.Context, principal domain.Principal, event events.Event) {
	publishEvent(ctx, s.dispatcher, principal, s.now, event)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
