package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// StaffTicketsHandler manages the agent/admin ticket surface.
type StaffTicketsHandler struct {
	lifecycle *service.LifecycleService
	comments  *service.CommentService
	templates *service.TemplateService
	schema    *service.SchemaService
}

// StaffTicketsHandlerDeps bundles the services behind the staff surface.
type StaffTicketsHandlerDeps struct {
	Lifecycle *service.LifecycleService
	Comments  *service.CommentService
	Templates *service.TemplateService
	Schema    *service.SchemaService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(deps StaffTicketsHandlerDeps) *StaffTicketsHandler {
	return &StaffTicketsHandler{
		lifecycle: deps.Lifecycle,
		comments:  deps.Comments,
		templates: deps.Templates,
		schema:    deps.Schema,
	}
}

// ListTickets GET /staff/tickets.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.lifecycle.ListForStaff(c.Context(), principal, parseStaffTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /staff/tickets/:id. Staff detail includes internal notes
// and the live SLA readout.
func (h *StaffTicketsHandler) GetTicket(c *fiber.Ctx) error {
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
	var slaPtr *domain.SLAStatus
	if !ticket.IsTerminal() {
		sla, err := h.lifecycle.CheckSLA(c.Context(), principal, ticket.ID)
		if err != nil {
			return err
		}
		slaPtr = &sla
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, values, comments, attachments, slaPtr)})
}

// Assign POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Assign(c.Context(), principal, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdateStatus POST /staff/tickets/:id/status.
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.UpdateStatus(c.Context(), principal, c.Params("id"), req.Status, req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Resolve POST /staff/tickets/:id/resolve. Transitions and posts the
// resolution as a public comment atomically.
func (h *StaffTicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := req.Status
	if status == "" {
		status = domain.TicketStatusResolved
	}
	ticket, err := h.comments.ResolveWithComment(c.Context(), principal, c.Params("id"), status, req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdatePriority POST /staff/tickets/:id/priority.
func (h *StaffTicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.UpdatePriority(c.Context(), principal, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddComment POST /staff/tickets/:id/comments. Staff may post internal
// notes hidden from the requester.
func (h *StaffTicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.comments.Add(c.Context(), principal, c.Params("id"), req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// DeleteComment DELETE /staff/tickets/:id/comments/:commentID.
func (h *StaffTicketsHandler) DeleteComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.comments.Delete(c.Context(), principal, c.Params("id"), c.Params("commentID")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CheckSLA GET /staff/tickets/:id/sla.
func (h *StaffTicketsHandler) CheckSLA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	sla, err := h.lifecycle.CheckSLA(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaResponse(sla)})
}

// ListOverdue GET /staff/tickets/overdue.
func (h *StaffTicketsHandler) ListOverdue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	overdue, err := h.lifecycle.ListOverdue(c.Context(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.OverdueTicketResponse, 0, len(overdue))
	for i := range overdue {
		items = append(items, dto.OverdueTicketResponse{
			Ticket: ticketSummary(&overdue[i].Ticket),
			SLA:    slaResponse(overdue[i].SLA),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /staff/tickets/:id/history.
func (h *StaffTicketsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := parsePage(c)
	entries, err := h.lifecycle.History(c.Context(), principal, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, historyEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTemplates GET /staff/templates.
func (h *StaffTicketsHandler) ListTemplates(c *fiber.Ctx) error {
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

// RenderTemplate POST /staff/templates/:id/render.
func (h *StaffTicketsHandler) RenderTemplate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RenderTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	text, err := h.templates.Render(c.Context(), principal, c.Params("id"), req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RenderTemplateResponse{Text: text}})
}

func parseStaffTicketQuery(c *fiber.Ctx) service.ListFilter {
	filter := service.ListFilter{}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if assigneeID := c.Query("assignee_id"); assigneeID != "" {
		filter.AssigneeID = &assigneeID
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	filter.Limit, filter.Offset = parsePage(c)
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func historyEntryResponse(entry *domain.TicketHistory) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:          entry.ID,
		ChangedBy:   entry.ChangedBy,
		ChangedRole: entry.ChangedRole,
		ChangeType:  string(entry.ChangeType),
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		CreatedAt:   entry.CreatedAt,
	}
}

func templateResponse(template *domain.Template) dto.TemplateResponse {
	return dto.TemplateResponse{
		ID:        template.ID,
		Name:      template.Name,
		Type:      template.Type,
		Body:      template.Body,
		IsActive:  template.IsActive,
		CreatedAt: template.CreatedAt,
		UpdatedAt: template.UpdatedAt,
	}
}
