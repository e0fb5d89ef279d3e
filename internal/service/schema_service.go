package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// SchemaService manages per-category dynamic fields: definition, ordering,
// submission validation, and value capture.
type SchemaService struct {
	fields     repository.FieldRepository
	values     repository.FieldValueRepository
	categories repository.CategoryRepository
	tickets    repository.TicketRepository
	timeout    time.Duration
}

// SchemaDependencies bundles repositories for the schema service.
type SchemaDependencies struct {
	FieldRepo      repository.FieldRepository
	FieldValueRepo repository.FieldValueRepository
	CategoryRepo   repository.CategoryRepository
	TicketRepo     repository.TicketRepository
	Timeout        time.Duration
}

// NewSchemaService constructs the service.
func NewSchemaService(deps SchemaDependencies) *SchemaService {
	return &SchemaService{
		fields:     deps.FieldRepo,
		values:     deps.FieldValueRepo,
		categories: deps.CategoryRepo,
		tickets:    deps.TicketRepo,
		timeout:    deps.Timeout,
	}
}

// FieldInput describes a field definition payload.
type FieldInput struct {
	Name      string
	Label     string
	Type      domain.FieldType
	Required  bool
	Position  int
	Options   []string
	Condition *domain.FieldCondition
	IsActive  bool
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	telPattern   = regexp.MustCompile(`^\+?[0-9][0-9\-\s().]{5,19}$`)
)

const dateLayout = "2006-01-02"

// FieldsFor returns the category's fields honoring position order.
func (s *SchemaService) FieldsFor(ctx context.Context, categoryID string, activeOnly bool) ([]domain.CategoryField, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": categoryID})
		}
		return nil, apperrors.MapError(err)
	}
	fields, err := s.fields.ListByCategory(ctx, categoryID, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return fields, nil
}

// ValidateSubmission checks submitted form values against the category's
// active schema and returns the typed values to persist. Conditions are
// evaluated in declared order; a conditional field is only validated while
// its governing condition holds against the submitted values.
func (s *SchemaService) ValidateSubmission(ctx context.Context, categoryID string, form map[string]any) ([]domain.FieldValue, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	fields, err := s.fields.ListByCategory(ctx, categoryID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return validateAgainstSchema(fields, form)
}

func validateAgainstSchema(fields []domain.CategoryField, form map[string]any) ([]domain.FieldValue, error) {
	// seen holds normalized values of earlier fields for condition checks.
	seen := make(map[string]domain.FieldValue, len(fields))
	var result []domain.FieldValue

	for _, field := range fields {
		if field.Condition != nil && !conditionHolds(field.Condition, seen) {
			continue
		}

		value, present, err := normalizeValue(&field, form[field.Name])
		if err != nil {
			return nil, err
		}
		if !present {
			if field.Required {
				return nil, apperrors.NewValidationError("required field missing",
					map[string]any{"field": field.Name})
			}
			continue
		}
		seen[field.ID] = value
		result = append(result, value)
	}
	return result, nil
}

func conditionHolds(condition *domain.FieldCondition, seen map[string]domain.FieldValue) bool {
	value, ok := seen[condition.FieldID]
	if !ok {
		return false
	}
	if value.Kind == domain.ValueKindList {
		for _, item := range value.List {
			if item == condition.Equals {
				return true
			}
		}
		return false
	}
	return value.Scalar == condition.Equals
}

func normalizeValue(field *domain.CategoryField, raw any) (domain.FieldValue, bool, error) {
	value := domain.FieldValue{FieldID: field.ID, FieldName: field.Name, Kind: domain.ValueKindScalar}

	if field.Type == domain.FieldTypeCheckboxSet {
		items, err := stringList(raw)
		if err != nil {
			return value, false, apperrors.NewValidationError("expected a list of options",
				map[string]any{"field": field.Name})
		}
		if len(items) == 0 {
			return value, false, nil
		}
		for _, item := range items {
			if !containsOption(field.Options, item) {
				return value, false, apperrors.NewValidationError("value outside declared options",
					map[string]any{"field": field.Name, "value": item})
			}
		}
		value.Kind = domain.ValueKindList
		value.List = items
		return value, true, nil
	}

	scalar, ok := raw.(string)
	if raw != nil && !ok {
		return value, false, apperrors.NewValidationError("expected a text value",
			map[string]any{"field": field.Name})
	}
	scalar = strings.TrimSpace(scalar)
	if scalar == "" {
		return value, false, nil
	}

	switch field.Type {
	case domain.FieldTypeEmail:
		if !emailPattern.MatchString(scalar) {
			return value, false, apperrors.NewValidationError("invalid email address",
				map[string]any{"field": field.Name})
		}
	case domain.FieldTypeTel:
		if !telPattern.MatchString(scalar) {
			return value, false, apperrors.NewValidationError("invalid phone number",
				map[string]any{"field": field.Name})
		}
	case domain.FieldTypeDate:
		if _, err := time.Parse(dateLayout, scalar); err != nil {
			return value, false, apperrors.NewValidationError("invalid date, expected YYYY-MM-DD",
				map[string]any{"field": field.Name})
		}
	case domain.FieldTypeSelect, domain.FieldTypeRadio:
		if !containsOption(field.Options, scalar) {
			return value, false, apperrors.NewValidationError("value outside declared options",
				map[string]any{"field": field.Name, "value": scalar})
		}
	}

	value.Scalar = scalar
	return value, true, nil
}

func stringList(raw any) ([]string, error) {
	switch typed := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return typed, nil
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			str, ok := item.(string)
			if !ok {
				return nil, errors.New("non-string list item")
			}
			items = append(items, str)
		}
		return items, nil
	}
	return nil, errors.New("not a list")
}

func containsOption(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

// PersistValues appends validated values to a ticket. Closed tickets accept
// no further field-value writes.
func (s *SchemaService) PersistValues(ctx context.Context, ticketID string, values []domain.FieldValue) error {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	if ticket.IsTerminal() {
		return apperrors.NewTerminalState(ticket.ID)
	}
	if err := s.values.CreateMany(ctx, ticketID, values); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// ValuesFor returns the stored values for a ticket.
func (s *SchemaService) ValuesFor(ctx context.Context, ticketID string) ([]domain.FieldValue, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	values, err := s.values.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return values, nil
}

// CreateField defines a new field for a category. Conditional rules may
// only reference an earlier-positioned field, which rejects cycles at
// schema-write time and keeps submission evaluation single-pass.
func (s *SchemaService) CreateField(ctx context.Context, categoryID string, input FieldInput) (*domain.CategoryField, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": categoryID})
		}
		return nil, apperrors.MapError(err)
	}

	field := &domain.CategoryField{
		CategoryID: categoryID,
		Name:       strings.TrimSpace(input.Name),
		Label:      strings.TrimSpace(input.Label),
		Type:       input.Type,
		Required:   input.Required,
		Position:   input.Position,
		Options:    input.Options,
		Condition:  input.Condition,
		IsActive:   input.IsActive,
	}

	existing, err := s.fields.ListByCategory(ctx, categoryID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := validateFieldDefinition(field, existing, nil); err != nil {
		return nil, err
	}

	if err := s.fields.Create(ctx, field); err != nil {
		return nil, apperrors.MapError(err)
	}
	return field, nil
}

// UpdateField updates a field definition. The machine name and type are
// frozen once values exist for the field.
func (s *SchemaService) UpdateField(ctx context.Context, fieldID string, input FieldInput) (*domain.CategoryField, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("field", map[string]any{"field_id": fieldID})
		}
		return nil, apperrors.MapError(err)
	}

	hasValues, err := s.fields.HasValues(ctx, fieldID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	name := strings.TrimSpace(input.Name)
	if hasValues && name != "" && name != field.Name {
		return nil, apperrors.NewValidationError("machine name is immutable once values exist",
			map[string]any{"field": field.Name})
	}
	if hasValues && input.Type != field.Type {
		return nil, apperrors.NewValidationError("field type is fixed once values exist",
			map[string]any{"field": field.Name})
	}
	if name != "" {
		field.Name = name
	}
	field.Label = strings.TrimSpace(input.Label)
	field.Type = input.Type
	field.Required = input.Required
	field.Position = input.Position
	field.Options = input.Options
	field.Condition = input.Condition
	field.IsActive = input.IsActive

	existing, err := s.fields.ListByCategory(ctx, field.CategoryID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := validateFieldDefinition(field, existing, &field.ID); err != nil {
		return nil, err
	}

	if err := s.fields.Update(ctx, field); err != nil {
		return nil, apperrors.MapError(err)
	}
	return field, nil
}

func validateFieldDefinition(field *domain.CategoryField, siblings []domain.CategoryField, selfID *string) error {
	if !domain.IsValidMachineName(field.Name) {
		return apperrors.NewValidationError("machine name must be lowercase letters, digits, underscores",
			map[string]any{"field": field.Name})
	}
	if !domain.IsValidFieldType(field.Type) {
		return apperrors.NewValidationError("unknown field type",
			map[string]any{"field": field.Name, "type": string(field.Type)})
	}
	needsOptions := field.Type == domain.FieldTypeSelect || field.Type == domain.FieldTypeRadio ||
		field.Type == domain.FieldTypeCheckboxSet
	if needsOptions && len(field.Options) == 0 {
		return apperrors.NewValidationError("option-based fields need at least one option",
			map[string]any{"field": field.Name})
	}

	for _, sibling := range siblings {
		if selfID != nil && sibling.ID == *selfID {
			continue
		}
		if sibling.Name == field.Name {
			return apperrors.NewValidationError("machine name already used in category",
				map[string]any{"field": field.Name})
		}
	}

	if field.Condition != nil {
		if selfID != nil && field.Condition.FieldID == *selfID {
			return apperrors.NewValidationError("field cannot condition on itself",
				map[string]any{"field": field.Name})
		}
		target := findField(siblings, field.Condition.FieldID)
		if target == nil {
			return apperrors.NewValidationError("conditional rule references unknown field",
				map[string]any{"field": field.Name})
		}
		if target.Position >= field.Position {
			return apperrors.NewValidationError("conditional rule may only reference an earlier field",
				map[string]any{"field": field.Name, "depends_on": target.Name})
		}
	}
	return nil
}

func findField(fields []domain.CategoryField, id string) *domain.CategoryField {
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i]
		}
	}
	return nil
}

// UpdateOrder atomically rewrites field positions for a category. The new
// layout must keep every conditional rule pointing at an earlier field.
func (s *SchemaService) UpdateOrder(ctx context.Context, categoryID string, positions map[string]int) error {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	fields, err := s.fields.ListByCategory(ctx, categoryID, false)
	if err != nil {
		return apperrors.MapError(err)
	}
	byID := make(map[string]*domain.CategoryField, len(fields))
	for i := range fields {
		byID[fields[i].ID] = &fields[i]
	}
	for fieldID := range positions {
		if _, ok := byID[fieldID]; !ok {
			return apperrors.NewNotFound("field", map[string]any{"field_id": fieldID})
		}
	}

	// Project the new layout and re-check condition ordering before writing.
	projected := func(id string) int {
		if position, ok := positions[id]; ok {
			return position
		}
		return byID[id].Position
	}
	for _, field := range fields {
		if field.Condition == nil {
			continue
		}
		if _, ok := byID[field.Condition.FieldID]; !ok {
			continue
		}
		if projected(field.Condition.FieldID) >= projected(field.ID) {
			return apperrors.NewValidationError("reorder would break conditional evaluation order",
				map[string]any{"field": field.Name})
		}
	}

	if err := s.fields.UpdatePositions(ctx, categoryID, positions); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// DeleteField removes a field that has no captured values; fields with
// values are deactivated instead to keep stored submissions interpretable.
func (s *SchemaService) DeleteField(ctx context.Context, fieldID string) error {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("field", map[string]any{"field_id": fieldID})
		}
		return apperrors.MapError(err)
	}

	hasValues, err := s.fields.HasValues(ctx, fieldID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if hasValues {
		field.IsActive = false
		if err := s.fields.Update(ctx, field); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	}
	if err := s.fields.Delete(ctx, fieldID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
