package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// TemplateService manages response templates and renders them against a
// ticket's live context.
type TemplateService struct {
	templates  repository.TemplateRepository
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	timeout    time.Duration
	now        func() time.Time
}

// TemplateDependencies bundles collaborators for the template service.
type TemplateDependencies struct {
	TemplateRepo repository.TemplateRepository
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	UserRepo     repository.UserRepository
	Timeout      time.Duration
	Clock        func() time.Time
}

// NewTemplateService constructs the service.
func NewTemplateService(deps TemplateDependencies) *TemplateService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TemplateService{
		templates:  deps.TemplateRepo,
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		users:      deps.UserRepo,
		timeout:    deps.Timeout,
		now:        now,
	}
}

// ListByType returns active templates of the given type for agent pickers.
func (s *TemplateService) ListByType(ctx context.Context, templateType domain.TemplateType) ([]domain.Template, error) {
	if !domain.IsValidTemplateType(templateType) {
		return nil, apperrors.NewValidationError("unknown template type",
			map[string]any{"type": string(templateType)})
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	templates, err := s.templates.ListByType(ctx, templateType, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return templates, nil
}

// Get fetches one template by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()
	return s.loadTemplate(ctx, id)
}

// Create registers a new template. Admin only.
func (s *TemplateService) Create(ctx context.Context, principal domain.Principal, template *domain.Template) error {
	if !principal.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	if err := validateTemplate(template); err != nil {
		return err
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if err := s.templates.Create(ctx, template); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Update rewrites an existing template. Admin only.
func (s *TemplateService) Update(ctx context.Context, principal domain.Principal, template *domain.Template) error {
	if !principal.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	if err := validateTemplate(template); err != nil {
		return err
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if _, err := s.loadTemplate(ctx, template.ID); err != nil {
		return err
	}
	if err := s.templates.Update(ctx, template); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Delete removes a template. Admin only.
func (s *TemplateService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	if !principal.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if err := s.templates.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("template", map[string]any{"template_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// Render substitutes a template's placeholders with the target ticket's
// data. The output is editable draft text, never auto-sent.
func (s *TemplateService) Render(ctx context.Context, principal domain.Principal, templateID, ticketID string) (string, error) {
	if !principal.IsStaff() {
		return "", apperrors.NewForbidden("agent or admin role required")
	}
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	template, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return "", err
	}
	if !template.IsActive {
		return "", apperrors.NewNotFound("template", map[string]any{"template_id": templateID})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", apperrors.MapError(err)
	}

	data := domain.TemplateData{
		TicketNumber: ticket.Number,
		TicketTitle:  ticket.Title,
		Now:          s.now(),
	}
	if category, err := s.categories.GetByID(ctx, ticket.CategoryID); err == nil {
		data.CategoryName = category.Name
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.MapError(err)
	}
	if requester, err := s.users.GetByID(ctx, ticket.RequesterID); err == nil {
		data.UserName = requester.Name
		data.UserEmail = requester.Email
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.MapError(err)
	}
	if ticket.AssigneeID != nil {
		agent, err := s.users.GetByID(ctx, *ticket.AssigneeID)
		if err == nil {
			data.AgentName = &agent.Name
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.MapError(err)
		}
	}
	return domain.RenderTemplate(template.Body, data), nil
}

func (s *TemplateService) loadTemplate(ctx context.Context, id string) (*domain.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("template", map[string]any{"template_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return template, nil
}

func validateTemplate(template *domain.Template) error {
	if strings.TrimSpace(template.Name) == "" {
		return apperrors.NewValidationError("template name required", nil)
	}
	if strings.TrimSpace(template.Body) == "" {
		return apperrors.NewValidationError("template body required", nil)
	}
	if !domain.IsValidTemplateType(template.Type) {
		return apperrors.NewValidationError("unknown template type",
			map[string]any{"type": string(template.Type)})
	}
	return nil
}
