// Package api provides error handling utilities for the REST API.
package api

import (
	"errors"
	"net/http"

	"github.com/logware/soar/internal/models"
)

// APIError represents a structured API error.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API error codes.
const (
	ErrCodeInvalidJSON   = "INVALID_JSON"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeNotRunning    = "NOT_RUNNING"
	ErrCodeStoreError    = "STORE_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Predefined API errors.
var (
	ErrInvalidJSON = &APIError{
		HTTPStatus: http.StatusBadRequest,
		Code:       ErrCodeInvalidJSON,
		Message:    "Invalid JSON body",
	}
	ErrExecutionNotFound = &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    "Execution not found",
	}
	ErrExecutionExists = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeAlreadyExists,
		Message:    "Execution already exists",
	}
	ErrExecutionNotRunning = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeNotRunning,
		Message:    "Execution is not running",
	}
	ErrPlaybookNotFound = &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    "Playbook not found",
	}
	ErrPlaybookExists = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeAlreadyExists,
		Message:    "Playbook already exists",
	}
	ErrRuleNotFound = &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    "Rule not found",
	}
	ErrRuleExists = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeAlreadyExists,
		Message:    "Rule already exists",
	}
	ErrAnomalyNotFound = &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    "Anomaly not found",
	}
	ErrAnomalyExists = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeAlreadyExists,
		Message:    "Anomaly already exists",
	}
	ErrStoreError = &APIError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       ErrCodeStoreError,
		Message:    "Storage operation failed",
	}
	ErrInternalError = &APIError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
	}
)

// NewValidationError creates a validation error with a custom message.
func NewValidationError(message string) *APIError {
	return &APIError{
		HTTPStatus: http.StatusBadRequest,
		Code:       ErrCodeValidation,
		Message:    message,
	}
}

// MapDomainError maps domain/model errors to API errors.
func MapDomainError(err error) *APIError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrExecutionNotFound):
		return ErrExecutionNotFound
	case errors.Is(err, models.ErrExecutionExists):
		return ErrExecutionExists
	case errors.Is(err, models.ErrExecutionNotRunning):
		return ErrExecutionNotRunning
	case errors.Is(err, models.ErrPlaybookNotFound):
		return ErrPlaybookNotFound
	case errors.Is(err, models.ErrPlaybookExists):
		return ErrPlaybookExists
	case errors.Is(err, models.ErrRuleNotFound):
		return ErrRuleNotFound
	case errors.Is(err, models.ErrRuleExists):
		return ErrRuleExists
	case errors.Is(err, models.ErrAnomalyNotFound):
		return ErrAnomalyNotFound
	case errors.Is(err, models.ErrAnomalyExists):
		return ErrAnomalyExists
	case errors.Is(err, models.ErrIDRequired),
		errors.Is(err, models.ErrNameRequired),
		errors.Is(err, models.ErrStartTimeRequired),
		errors.Is(err, models.ErrDetectedAtRequired),
		errors.Is(err, models.ErrConditionFieldRequired),
		errors.Is(err, models.ErrInvalidSourceType),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrInvalidSeverity),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrInvalidOperator),
		errors.Is(err, models.ErrInvalidConfidence),
		errors.Is(err, models.ErrInvalidStepOrder),
		errors.Is(err, models.ErrDuplicateStepOrder),
		errors.Is(err, models.ErrEndTimeRequired),
		errors.Is(err, models.ErrEndTimeForbidden),
		errors.Is(err, models.ErrEndBeforeStart):
		return NewValidationError(err.Error())
	default:
		return &APIError{
			HTTPStatus: http.StatusInternalServerError,
			Code:       ErrCodeInternalError,
			Message:    "An unexpected error occurred",
		}
	}
}

// WriteAPIError writes an API error response.
func (h *Handler) WriteAPIError(w http.ResponseWriter, err *APIError) {
	h.writeJSON(w, err.HTTPStatus, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

// HandleError maps a domain error to an API error and writes the response.
// Returns true if an error was handled, false if err was nil.
func (h *Handler) HandleError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	apiErr := MapDomainError(err)
	h.WriteAPIError(w, apiErr)
	return true
}

// HandleStoreError handles storage errors with logging.
// Returns true if an error was handled, false if err was nil.
func (h *Handler) HandleStoreError(w http.ResponseWriter, err error, operation string) bool {
	if err == nil {
		return false
	}

	// Check for known domain errors first
	apiErr := MapDomainError(err)

	// Log unexpected errors
	if apiErr.Code == ErrCodeInternalError {
		h.logger.Error().Err(err).Str("operation", operation).Msg("Storage operation failed")
		apiErr = &APIError{
			HTTPStatus: http.StatusInternalServerError,
			Code:       ErrCodeStoreError,
			Message:    "Failed to " + operation,
		}
	}

	h.WriteAPIError(w, apiErr)
	return true
}
