// Package errors provides the engine's standard error codes and their
// conversion to BPMN errors for the workflow engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Engine errors
const (
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvariantViolation   ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeConcurrentUpdate     ErrorCode = "CONCURRENT_UPDATE"
)

// Input and infrastructure errors
const (
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidFilterFormat  ErrorCode = "INVALID_FILTER_FORMAT"
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseWriteFailed  ErrorCode = "DATABASE_WRITE_FAILED"
	ErrCodeCacheFailed          ErrorCode = "CACHE_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout        ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAIScoringFailed      ErrorCode = "AI_SCORING_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so the sentinels
// below work with errors.Is regardless of message or details.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e after merging kv into its metadata.
func (e *StandardError) WithMetadata(kv map[string]interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{}, len(kv))
	}
	for k, v := range kv {
		e.Metadata[k] = v
	}
	return e
}

// Sentinels for errors.Is.
var (
	ErrInvalidTransition    = &StandardError{Code: ErrCodeInvalidTransition}
	ErrDuplicateApplication = &StandardError{Code: ErrCodeDuplicateApplication}
	ErrNotFound             = &StandardError{Code: ErrCodeNotFound}
	ErrInvariantViolation   = &StandardError{Code: ErrCodeInvariantViolation}
	ErrConcurrentUpdate     = &StandardError{Code: ErrCodeConcurrentUpdate}
	ErrInvalidInput         = &StandardError{Code: ErrCodeInvalidInput}
	ErrInvalidFilterFormat  = &StandardError{Code: ErrCodeInvalidFilterFormat}
)

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// AsStandard returns the StandardError in err's chain, wrapping anything
// else as a non-retryable internal error.
func AsStandard(err error) *StandardError {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a state-machine move that is not allowed.
func NewInvalidTransitionError(machine, from, to string) *StandardError {
	return newError(ErrCodeInvalidTransition,
		fmt.Sprintf("%s cannot move from %s to %s", machine, from, to),
		fmt.Sprintf("machine: %s, from: %s, to: %s", machine, from, to),
		false,
	).WithMetadata(map[string]interface{}{"from": from, "to": to})
}

// NewDuplicateApplicationError reports a second application for a (candidate, job) pair.
func NewDuplicateApplicationError(candidateID, jobID string) *StandardError {
	return newError(ErrCodeDuplicateApplication,
		"Application already exists",
		fmt.Sprintf("candidateId: %s, jobId: %s", candidateID, jobID),
		false,
	)
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("id: %s", id),
		false,
	)
}

// NewInvariantViolationError is raised when a value that must never leave
// its range reaches an output boundary.
func NewInvariantViolationError(details string) *StandardError {
	return newError(ErrCodeInvariantViolation, "Invariant violated", details, false)
}

// NewConcurrentUpdateError is returned after compare-and-set retries are exhausted.
func NewConcurrentUpdateError(resource, id string) *StandardError {
	return newError(ErrCodeConcurrentUpdate,
		fmt.Sprintf("%s was modified concurrently", resource),
		fmt.Sprintf("id: %s", id),
		true,
	)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewInvalidFilterFormatError(details string) *StandardError {
	return newError(ErrCodeInvalidFilterFormat, "Invalid filter format", details, false)
}

// NewDatabaseQueryFailedError creates a retryable read error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed,
		"Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		true,
	)
}

// NewDatabaseWriteFailedError creates a retryable write error.
func NewDatabaseWriteFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseWriteFailed,
		"Database write failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		true,
	)
}

func NewCacheFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeCacheFailed,
		"Cache operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		true,
	)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed,
		"Job search failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		true,
	)
}

func NewSearchTimeoutError(index string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Job search timeout", fmt.Sprintf("index: %s", index), true)
}

// NewNotificationFailedError creates a retryable notification send error.
func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed,
		"Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		true,
	)
}

func NewAIScoringFailedError(err error) *StandardError {
	return newError(ErrCodeAIScoringFailed, "AI scoring failed", err.Error(), true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceError,
		fmt.Sprintf("External service '%s' error", service),
		err.Error(),
		true,
	)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout,
		fmt.Sprintf("Service '%s' timeout", service),
		err.Error(),
		true,
	)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseWriteFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationFailed,
		ErrCodeExternalServiceError:
		return 3

	case ErrCodeSearchTimeout,
		ErrCodeTimeout,
		ErrCodeCacheFailed,
		ErrCodeConcurrentUpdate,
		ErrCodeAIScoringFailed:
		return 2

	default:
		return 0 // business errors are never retried
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeInvalidTransition || code == ErrCodeDuplicateApplication ||
		code == ErrCodeConcurrentUpdate:
		return "LIFECYCLE"
	case code == ErrCodeInvariantViolation:
		return "INVARIANT"
	case strings.Contains(codeStr, "DATABASE") || code == ErrCodeNotFound:
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AI_"):
		return "AI"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
