package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// TemplateRequest payload for create/update.
type TemplateRequest struct {
	Name     string              `json:"name"`
	Type     domain.TemplateType `json:"type"`
	Body     string              `json:"body"`
	IsActive *bool               `json:"is_active,omitempty"`
}

// TemplateResponse payload.
type TemplateResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      domain.TemplateType `json:"type"`
	Body      string              `json:"body"`
	IsActive  bool                `json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// RenderTemplateRequest payload.
type RenderTemplateRequest struct {
	TicketID string `json:"ticket_id"`
}

// RenderTemplateResponse payload.
type RenderTemplateResponse struct {
	Text string `json:"text"`
}

// AssistQueryRequest payload.
type AssistQueryRequest struct {
	Question string `json:"question"`
	TicketID string `json:"ticket_id"`
}
