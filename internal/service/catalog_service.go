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

// CatalogService exposes the category catalog: read access for ticket
// creation, administrative mutation behind the admin surface.
type CatalogService struct {
	categories repository.CategoryRepository
	tickets    repository.TicketRepository
	timeout    time.Duration
}

// CatalogDependencies bundles repositories for the catalog service.
type CatalogDependencies struct {
	CategoryRepo repository.CategoryRepository
	TicketRepo   repository.TicketRepository
	Timeout      time.Duration
}

// NewCatalogService constructs the service.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	return &CatalogService{
		categories: deps.CategoryRepo,
		tickets:    deps.TicketRepo,
		timeout:    deps.Timeout,
	}
}

// CategoryInput describes a category payload.
type CategoryInput struct {
	Name            string
	Description     string
	DefaultPriority domain.TicketPriority
	SLAHours        int
	IsActive        bool
}

// ListActive returns categories available for ticket creation.
func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

// ListAll returns every category for the admin surface.
func (s *CatalogService) ListAll(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

// Get fetches a category by id.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()
	return s.get(ctx, id)
}

// GetActive fetches a category for ticket-creation use: an inactive
// category is reported as absent.
func (s *CatalogService) GetActive(ctx context.Context, id string) (*domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	category, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
	}
	return category, nil
}

func (s *CatalogService) get(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// Create defines a new category.
func (s *CatalogService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	category := &domain.Category{
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		DefaultPriority: input.DefaultPriority,
		SLAHours:        input.SLAHours,
		IsActive:        input.IsActive,
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// Update rewrites a category definition.
func (s *CatalogService) Update(ctx context.Context, id string, input CategoryInput) (*domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	category, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(input.Name)
	category.Description = strings.TrimSpace(input.Description)
	category.DefaultPriority = input.DefaultPriority
	category.SLAHours = input.SLAHours
	category.IsActive = input.IsActive
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// Deactivate soft-disables a category; existing tickets keep referencing it.
func (s *CatalogService) Deactivate(ctx context.Context, id string) (*domain.Category, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	category, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return category, nil
	}
	category.IsActive = false
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// Delete hard-removes a category. Refused while any non-terminal ticket
// references it; deactivation is the supported path in that case.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	count, err := s.tickets.CountByCategory(ctx, id, true)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("category is referenced by open tickets, deactivate instead",
			map[string]any{"category_id": id, "ticket_count": count})
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func validateCategory(category *domain.Category) error {
	if category.Name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	if category.SLAHours <= 0 {
		return apperrors.NewValidationError("sla_hours must be positive",
			map[string]any{"sla_hours": category.SLAHours})
	}
	if !domain.IsValidPriority(category.DefaultPriority) {
		return apperrors.NewValidationError("unknown default priority",
			map[string]any{"default_priority": string(category.DefaultPriority)})
	}
	return nil
}
