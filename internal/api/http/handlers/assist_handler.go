package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/assist"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

// AssistHandler relays knowledge-base questions to the assist backend.
type AssistHandler struct {
	client *assist.Client
}

// NewAssistHandler constructs handler.
func NewAssistHandler(client *assist.Client) *AssistHandler {
	return &AssistHandler{client: client}
}

// Query POST /assist/query.
func (h *AssistHandler) Query(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssistQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Question) == "" {
		return apperrors.NewValidationError("question required", nil)
	}
	answer, err := h.client.Query(c.Context(), principal, req.Question, req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": answer})
}
