package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// AdminHandler manages category, field schema, and template administration.
type AdminHandler struct {
	catalog   *service.CatalogService
	schema    *service.SchemaService
	templates *service.TemplateService
}

// AdminHandlerDeps bundles services for the admin surface.
type AdminHandlerDeps struct {
	Catalog   *service.CatalogService
	Schema    *service.SchemaService
	Templates *service.TemplateService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(deps AdminHandlerDeps) *AdminHandler {
	return &AdminHandler{catalog: deps.Catalog, schema: deps.Schema, templates: deps.Templates}
}

// ListCategories GET /admin/categories. Includes inactive categories.
func (h *AdminHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListAll(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, categoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /admin/categories.
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.catalog.Create(c.Context(), categoryInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// UpdateCategory PUT /admin/categories/:id.
func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.catalog.Update(c.Context(), c.Params("id"), categoryInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponse(category)})
}

// DeactivateCategory POST /admin/categories/:id/deactivate.
func (h *AdminHandler) DeactivateCategory(c *fiber.Ctx) error {
	category, err := h.catalog.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponse(category)})
}

// DeleteCategory DELETE /admin/categories/:id.
func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.catalog.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListFields GET /admin/categories/:id/fields. Includes inactive fields.
func (h *AdminHandler) ListFields(c *fiber.Ctx) error {
	fields, err := h.schema.FieldsFor(c.Context(), c.Params("id"), false)
	if err != nil {
		return err
	}
	items := make([]dto.FieldResponse, 0, len(fields))
	for i := range fields {
		items = append(items, fieldResponse(&fields[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateField POST /admin/categories/:id/fields.
func (h *AdminHandler) CreateField(c *fiber.Ctx) error {
	var req dto.FieldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	field, err := h.schema.CreateField(c.Context(), c.Params("id"), fieldInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fieldResponse(field)})
}

// UpdateField PUT /admin/fields/:id.
func (h *AdminHandler) UpdateField(c *fiber.Ctx) error {
	var req dto.FieldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	field, err := h.schema.UpdateField(c.Context(), c.Params("id"), fieldInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fieldResponse(field)})
}

// ReorderFields POST /admin/categories/:id/fields/reorder.
func (h *AdminHandler) ReorderFields(c *fiber.Ctx) error {
	var req dto.ReorderFieldsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.FieldIDs) == 0 {
		return apperrors.NewValidationError("field_ids required", nil)
	}
	positions := make(map[string]int, len(req.FieldIDs))
	for i, id := range req.FieldIDs {
		positions[id] = i + 1
	}
	if err := h.schema.UpdateOrder(c.Context(), c.Params("id"), positions); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteField DELETE /admin/fields/:id. Fields with captured values are
// deactivated instead of removed.
func (h *AdminHandler) DeleteField(c *fiber.Ctx) error {
	if err := h.schema.DeleteField(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTemplates GET /admin/templates.
func (h *AdminHandler) ListTemplates(c *fiber.Ctx) error {
	templateType := domain.TemplateType(c.Query("type", string(domain.TemplateTypeComment)))
	templates, err := h.templates.ListByType(c.Context(), templateType)
	if err != nil {
		return err
	}
	items := make([]dto.TemplateResponse, 0, len(templates))
	for i := range templates {
		items = append(items, templateResponse(&templates[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTemplate POST /admin/templates.
func (h *AdminHandler) CreateTemplate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	template := templateFromRequest(req)
	if err := h.templates.Create(c.Context(), principal, template); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": templateResponse(template)})
}

// UpdateTemplate PUT /admin/templates/:id.
func (h *AdminHandler) UpdateTemplate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	template := templateFromRequest(req)
	template.ID = c.Params("id")
	if err := h.templates.Update(c.Context(), principal, template); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": templateResponse(template)})
}

// DeleteTemplate DELETE /admin/templates/:id.
func (h *AdminHandler) DeleteTemplate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.templates.Delete(c.Context(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func categoryInput(req dto.CategoryRequest) service.CategoryInput {
	input := service.CategoryInput{
		Name:            req.Name,
		Description:     req.Description,
		DefaultPriority: req.DefaultPriority,
		SLAHours:        req.SLAHours,
		IsActive:        true,
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return input
}

func fieldInput(req dto.FieldRequest) service.FieldInput {
	input := service.FieldInput{
		Name:     req.Name,
		Label:    req.Label,
		Type:     req.Type,
		Required: req.Required,
		Options:  req.Options,
		IsActive: true,
	}
	if req.Condition != nil {
		input.Condition = &domain.FieldCondition{
			FieldID: req.Condition.FieldID,
			Equals:  req.Condition.Equals,
		}
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return input
}

func templateFromRequest(req dto.TemplateRequest) *domain.Template {
	template := &domain.Template{
		Name:     req.Name,
		Type:     req.Type,
		Body:     req.Body,
		IsActive: true,
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}
	return template
}
