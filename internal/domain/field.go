package domain

import (
	"regexp"
	"time"
)

// FieldType enumerates supported input types for category fields.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeSelect      FieldType = "select"
	FieldTypeRadio       FieldType = "radio"
	FieldTypeCheckboxSet FieldType = "checkbox_set"
	FieldTypeDate        FieldType = "date"
	FieldTypeEmail       FieldType = "email"
	FieldTypeTel         FieldType = "tel"
)

// IsValidFieldType reports whether the code belongs to the field type enum.
func IsValidFieldType(fieldType FieldType) bool {
	switch fieldType {
	case FieldTypeText, FieldTypeTextarea, FieldTypeSelect, FieldTypeRadio,
		FieldTypeCheckboxSet, FieldTypeDate, FieldTypeEmail, FieldTypeTel:
		return true
	}
	return false
}

// FieldCondition gates a field's visibility on another field's value.
// The referenced field must be declared earlier in the category's order so
// submissions evaluate in a single pass.
type FieldCondition struct {
	FieldID string
	Equals  string
}

// CategoryField describes one extra input collected for tickets in a
// category. The machine Name is immutable once values exist for the field.
type CategoryField struct {
	ID         string
	CategoryID string
	Name       string
	Label      string
	Type       FieldType
	Required   bool
	Position   int
	Options    []string
	Condition  *FieldCondition
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var machineNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// IsValidMachineName reports whether the name is lowercase/underscore.
func IsValidMachineName(name string) bool {
	return machineNamePattern.MatchString(name)
}

// ValueKind tags how a stored field value is shaped.
type ValueKind string

const (
	ValueKindScalar ValueKind = "scalar"
	ValueKindList   ValueKind = "list"
)

// FieldValue is the value captured for one category field at ticket
// creation. Values are append-only: later schema changes never rewrite them.
type FieldValue struct {
	ID        string
	TicketID  string
	FieldID   string
	FieldName string
	Kind      ValueKind
	Scalar    string
	List      []string
	CreatedAt time.Time
}
