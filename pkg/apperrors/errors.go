package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes in the engine's failure taxonomy.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidCategory     = "INVALID_CATEGORY"
	CodeInvalidAssignee     = "INVALID_ASSIGNEE"
	CodeTerminalState       = "TERMINAL_STATE"
	CodeAlreadyRated        = "ALREADY_RATED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodePersistenceTimeout  = "PERSISTENCE_TIMEOUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors. Retryable marks failures the
// caller may safely retry (contention, bounded-wait expiry).
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Retryable  bool
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewInvalidCategory(categoryID string) error {
	return NewDomainError(CodeInvalidCategory, "category missing or inactive", http.StatusUnprocessableEntity,
		map[string]any{"category_id": categoryID})
}

func NewInvalidAssignee(assigneeID string) error {
	return NewDomainError(CodeInvalidAssignee, "assignee must be an active agent or admin", http.StatusUnprocessableEntity,
		map[string]any{"assignee_id": assigneeID})
}

func NewTerminalState(ticketID string) error {
	return NewDomainError(CodeTerminalState, "ticket is closed and accepts no further changes", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewAlreadyRated(ticketID string) error {
	return NewDomainError(CodeAlreadyRated, "satisfaction rating already submitted", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewConcurrencyConflict(ticketID string) error {
	return &DomainError{
		Code:       CodeConcurrencyConflict,
		Message:    "concurrent update conflict, retry the operation",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"ticket_id": ticketID},
		Retryable:  true,
	}
}

func NewPersistenceTimeout(err error) error {
	return &DomainError{
		Code:       CodePersistenceTimeout,
		Message:    "persistence call exceeded its bounded wait",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, recognizing
// persistence-layer failure shapes.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPersistenceTimeout(err).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure / deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			de := NewConcurrencyConflict("").(*DomainError)
			de.Err = err
			return de
		}
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError as an error value.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
