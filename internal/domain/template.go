package domain

import (
	"strings"
	"time"
)

// TemplateType scopes a template to comment or resolution authoring.
type TemplateType string

const (
	TemplateTypeComment    TemplateType = "comment"
	TemplateTypeResolution TemplateType = "resolution"
)

// IsValidTemplateType reports whether the code belongs to the enum.
func IsValidTemplateType(templateType TemplateType) bool {
	return templateType == TemplateTypeComment || templateType == TemplateTypeResolution
}

// Template is a reusable, placeholder-bearing snippet for comments or
// resolutions. Rendering is a pure substitution, never code evaluation.
type Template struct {
	ID        string
	Name      string
	Type      TemplateType
	Body      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Placeholder tokens recognized by RenderTemplate.
const (
	TokenTicketNumber = "{{ticket_number}}"
	TokenTicketTitle  = "{{ticket_title}}"
	TokenCategoryName = "{{category_name}}"
	TokenUserName     = "{{user_name}}"
	TokenUserEmail    = "{{user_email}}"
	TokenAgentName    = "{{agent_name}}"
	TokenCurrentDate  = "{{current_date}}"
)

// TemplateData carries the substitution inputs for one rendering.
type TemplateData struct {
	TicketNumber string
	TicketTitle  string
	CategoryName string
	UserName     string
	UserEmail    string
	AgentName    *string
	Now          time.Time
}

// RenderTemplate substitutes recognized placeholders into the body.
// Unresolved placeholders, including {{agent_name}} on unassigned tickets
// and any unknown token, stay verbatim for operator review.
func RenderTemplate(body string, data TemplateData) string {
	pairs := []string{
		TokenTicketNumber, data.TicketNumber,
		TokenTicketTitle, data.TicketTitle,
		TokenCategoryName, data.CategoryName,
		TokenUserName, data.UserName,
		TokenUserEmail, data.UserEmail,
		TokenCurrentDate, data.Now.Format("2006-01-02"),
	}
	if data.AgentName != nil {
		pairs = append(pairs, TokenAgentName, *data.AgentName)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
