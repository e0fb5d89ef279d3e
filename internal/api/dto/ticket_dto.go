package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID  string                `json:"category_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Fields      map[string]any        `json:"fields"`
	Attachments []AttachmentRequest   `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         string                `json:"id"`
	Number     string                `json:"number"`
	CategoryID string                `json:"category_id"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                  string                `json:"id"`
	Number              string                `json:"number"`
	RequesterID         string                `json:"requester_id"`
	CategoryID          string                `json:"category_id"`
	AssigneeID          *string               `json:"assignee_id,omitempty"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Status              domain.TicketStatus   `json:"status"`
	Priority            domain.TicketPriority `json:"priority"`
	Source              string                `json:"source"`
	Resolution          *string               `json:"resolution,omitempty"`
	SatisfactionRating  *int                  `json:"satisfaction_rating,omitempty"`
	SatisfactionComment *string               `json:"satisfaction_comment,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	ResolvedAt          *time.Time            `json:"resolved_at,omitempty"`
	Fields              []FieldValueResponse  `json:"fields"`
	Comments            []CommentResponse     `json:"comments"`
	Attachments         []AttachmentResponse  `json:"attachments"`
	SLA                 *SLAResponse          `json:"sla,omitempty"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// FieldValueResponse is a captured dynamic field value.
type FieldValueResponse struct {
	FieldID   string   `json:"field_id"`
	FieldName string   `json:"field_name"`
	Value     any      `json:"value"`
	Values    []string `json:"values,omitempty"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID         string      `json:"id"`
	AuthorID   string      `json:"author_id"`
	AuthorRole domain.Role `json:"author_role"`
	Body       string      `json:"body"`
	Internal   bool        `json:"internal"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SLAResponse is the computed SLA readout for one ticket.
type SLAResponse struct {
	SLAHours       int       `json:"sla_hours"`
	Deadline       time.Time `json:"deadline"`
	HoursRemaining int       `json:"hours_remaining"`
	Overdue        bool      `json:"overdue"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status     domain.TicketStatus `json:"status"`
	Resolution string              `json:"resolution"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// RatingRequest payload.
type RatingRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	ID          string         `json:"id"`
	ChangedBy   string         `json:"changed_by"`
	ChangedRole domain.Role    `json:"changed_role"`
	ChangeType  string         `json:"change_type"`
	OldValue    map[string]any `json:"old_value,omitempty"`
	NewValue    map[string]any `json:"new_value,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// OverdueTicketResponse pairs a summary with its SLA readout.
type OverdueTicketResponse struct {
	Ticket TicketSummary `json:"ticket"`
	SLA    SLAResponse   `json:"sla"`
}
