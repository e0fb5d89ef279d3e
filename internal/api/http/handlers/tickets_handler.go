package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// TicketsHandler manages requester-facing ticket endpoints.
type TicketsHandler struct {
	lifecycle    *service.LifecycleService
	comments     *service.CommentService
	satisfaction *service.SatisfactionService
	schema       *service.SchemaService
	catalog      *service.CatalogService
}

// TicketsHandlerDeps bundles the services behind the requester surface.
type TicketsHandlerDeps struct {
	Lifecycle    *service.LifecycleService
	Comments     *service.CommentService
	Satisfaction *service.SatisfactionService
	Schema       *service.SchemaService
	Catalog      *service.CatalogService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(deps TicketsHandlerDeps) *TicketsHandler {
	return &TicketsHandler{
		lifecycle:    deps.Lifecycle,
		comments:     deps.Comments,
		satisfaction: deps.Satisfaction,
		schema:       deps.Schema,
		catalog:      deps.Catalog,
	}
}

// ListCategories GET /categories.
func (h *TicketsHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListActive(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, categoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListCategoryFields GET /categories/:id/fields. Returns the active field
// layout the intake form renders, conditions included.
func (h *TicketsHandler) ListCategoryFields(c *fiber.Ctx) error {
	if _, err := h.catalog.GetActive(c.Context(), c.Params("id")); err != nil {
		return err
	}
	fields, err := h.schema.FieldsFor(c.Context(), c.Params("id"), true)
	if err != nil {
		return err
	}
	items := make([]dto.FieldResponse, 0, len(fields))
	for i := range fields {
		items = append(items, fieldResponse(&fields[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	attachments := make([]service.AttachmentInput, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		attachments = append(attachments, service.AttachmentInput{
			FileName:    att.FileName,
			StoragePath: att.StoragePath,
			SizeBytes:   att.SizeBytes,
		})
	}
	ticket, err := h.lifecycle.Create(c.Context(), principal, service.CreateInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Source:      "web",
		Fields:      req.Fields,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := parsePage(c)
	tickets, err := h.lifecycle.ListForRequester(c.Context(), principal, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.lifecycle.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	comments, err := h.comments.List(c.Context(), principal, ticket.ID)
	if err != nil {
		return err
	}
	values, err := h.schema.ValuesFor(c.Context(), ticket.ID)
	if err != nil {
		return err
	}
	attachments, err := h.lifecycle.Attachments(c.Context(), principal, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, values, comments, attachments, nil)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.comments.Add(c.Context(), principal, c.Params("id"), req.Body, false)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.lifecycle.CloseAsRequester(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// RateTicket POST /tickets/:id/rating.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.satisfaction.SubmitRating(c.Context(), principal, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parsePage(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         ticket.ID,
		Number:     ticket.Number,
		CategoryID: ticket.CategoryID,
		AssigneeID: ticket.AssigneeID,
		Title:      ticket.Title,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, values []domain.FieldValue, comments []domain.Comment, attachments []domain.Attachment, sla *domain.SLAStatus) dto.TicketDetailResponse {
	fields := make([]dto.FieldValueResponse, 0, len(values))
	for i := range values {
		fields = append(fields, fieldValueResponse(&values[i]))
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	files := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		files = append(files, dto.AttachmentResponse{
			ID:        attachments[i].ID,
			FileName:  attachments[i].FileName,
			SizeBytes: attachments[i].SizeBytes,
			CreatedAt: attachments[i].CreatedAt,
		})
	}
	detail := dto.TicketDetailResponse{
		ID:                  ticket.ID,
		Number:              ticket.Number,
		RequesterID:         ticket.RequesterID,
		CategoryID:          ticket.CategoryID,
		AssigneeID:          ticket.AssigneeID,
		Title:               ticket.Title,
		Description:         ticket.Description,
		Status:              ticket.Status,
		Priority:            ticket.Priority,
		Source:              ticket.Source,
		Resolution:          ticket.Resolution,
		SatisfactionRating:  ticket.SatisfactionRating,
		SatisfactionComment: ticket.SatisfactionComment,
		CreatedAt:           ticket.CreatedAt,
		UpdatedAt:           ticket.UpdatedAt,
		ResolvedAt:          ticket.ResolvedAt,
		Fields:              fields,
		Comments:            items,
		Attachments:         files,
	}
	if sla != nil {
		resp := slaResponse(*sla)
		detail.SLA = &resp
	}
	return detail
}

func fieldValueResponse(value *domain.FieldValue) dto.FieldValueResponse {
	resp := dto.FieldValueResponse{
		FieldID:   value.FieldID,
		FieldName: value.FieldName,
	}
	if value.Kind == domain.ValueKindList {
		resp.Values = value.List
		resp.Value = value.List
	} else {
		resp.Value = value.Scalar
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		AuthorID:   comment.AuthorID,
		AuthorRole: comment.AuthorRole,
		Body:       comment.Body,
		Internal:   comment.Internal,
		CreatedAt:  comment.CreatedAt,
	}
}

func slaResponse(sla domain.SLAStatus) dto.SLAResponse {
	return dto.SLAResponse{
		SLAHours:       sla.SLAHours,
		Deadline:       sla.Deadline,
		HoursRemaining: sla.HoursRemaining,
		Overdue:        sla.Overdue,
	}
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:              category.ID,
		Name:            category.Name,
		Description:     category.Description,
		DefaultPriority: category.DefaultPriority,
		SLAHours:        category.SLAHours,
		IsActive:        category.IsActive,
		CreatedAt:       category.CreatedAt,
		UpdatedAt:       category.UpdatedAt,
	}
}

func fieldResponse(field *domain.CategoryField) dto.FieldResponse {
	resp := dto.FieldResponse{
		ID:       field.ID,
		Name:     field.Name,
		Label:    field.Label,
		Type:     field.Type,
		Required: field.Required,
		Position: field.Position,
		Options:  field.Options,
		IsActive: field.IsActive,
	}
	if field.Condition != nil {
		resp.Condition = &dto.FieldConditionPayload{
			FieldID: field.Condition.FieldID,
			Equals:  field.Condition.Equals,
		}
	}
	return resp
}
