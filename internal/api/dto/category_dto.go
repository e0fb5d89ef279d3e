package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// CategoryRequest payload for create/update.
type CategoryRequest struct {
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	DefaultPriority domain.TicketPriority `json:"default_priority"`
	SLAHours        int                   `json:"sla_hours"`
	IsActive        *bool                 `json:"is_active,omitempty"`
}

// CategoryResponse payload.
type CategoryResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	DefaultPriority domain.TicketPriority `json:"default_priority"`
	SLAHours        int                   `json:"sla_hours"`
	IsActive        bool                  `json:"is_active"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// FieldConditionPayload mirrors a conditional display rule.
type FieldConditionPayload struct {
	FieldID string `json:"field_id"`
	Equals  string `json:"equals"`
}

// FieldRequest payload for field create/update.
type FieldRequest struct {
	Name      string                 `json:"name"`
	Label     string                 `json:"label"`
	Type      domain.FieldType       `json:"type"`
	Required  bool                   `json:"required"`
	Options   []string               `json:"options"`
	Condition *FieldConditionPayload `json:"condition,omitempty"`
	IsActive  *bool                  `json:"is_active,omitempty"`
}

// FieldResponse payload.
type FieldResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Label     string                 `json:"label"`
	Type      domain.FieldType       `json:"type"`
	Required  bool                   `json:"required"`
	Position  int                    `json:"position"`
	Options   []string               `json:"options,omitempty"`
	Condition *FieldConditionPayload `json:"condition,omitempty"`
	IsActive  bool                   `json:"is_active"`
}

// ReorderFieldsRequest payload.
type ReorderFieldsRequest struct {
	FieldIDs []string `json:"field_ids"`
}
