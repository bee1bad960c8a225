// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinels_MatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"invalid transition", NewInvalidTransitionError("interaction", "not_interested", "applied"), ErrInvalidTransition},
		{"duplicate", NewDuplicateApplicationError("C1", "J1"), ErrDuplicateApplication},
		{"not found", NewNotFoundError("application", "A1"), ErrNotFound},
		{"invariant", NewInvariantViolationError("score 101"), ErrInvariantViolation},
		{"concurrent", NewConcurrentUpdateError("interaction", "C1/J1"), ErrConcurrentUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.False(t, stderrors.Is(wrapped, ErrInvalidInput))
		})
	}
}

func TestCodeOfAndAsStandard(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(fmt.Errorf("x: %w", NewNotFoundError("job", "J1"))))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))

	se := AsStandard(stderrors.New("plain"))
	assert.Equal(t, ErrCodeInternal, se.Code)
	assert.Equal(t, "plain", se.Details)
	assert.False(t, se.Retryable)
}

func TestStandardError_Format(t *testing.T) {
	err := NewNotFoundError("application", "A1")
	assert.Equal(t, "NOT_FOUND: application not found (id: A1)", err.Error())
	assert.Equal(t, "INVARIANT_VIOLATION: Invariant violated", newError(ErrCodeInvariantViolation, "Invariant violated", "", false).Error())
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable infrastructure error", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewDatabaseQueryFailedError("get interaction", stderrors.New("conn reset")))
		assert.Equal(t, "DATABASE_QUERY_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, "DATABASE_QUERY_FAILED", bpmn.ErrorVariables["originalErrorCode"])
	})

	t.Run("business error is never retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidTransitionError("application", "new", "new"))
		assert.Equal(t, 0, bpmn.Retries)
		assert.Equal(t, "new", bpmn.ErrorVariables["from"])

		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "INVALID_TRANSITION", vars["errorCode"])
		assert.Equal(t, false, vars["retryable"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeInvalidTransition:    "LIFECYCLE",
		ErrCodeDuplicateApplication: "LIFECYCLE",
		ErrCodeInvariantViolation:   "INVARIANT",
		ErrCodeNotFound:             "DATABASE",
		ErrCodeDatabaseWriteFailed:  "DATABASE",
		ErrCodeSearchTimeout:        "SEARCH",
		ErrCodeCacheFailed:          "CACHE",
		ErrCodeNotificationFailed:   "NOTIFICATION",
		ErrCodeAIScoringFailed:      "AI",
		ErrCodeInvalidFilterFormat:  "VALIDATION",
		ErrCodeInternal:             "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeConcurrentUpdate))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateApplication))
}

func TestWithMetadata(t *testing.T) {
	err := NewInvalidInputError("bad").WithMetadata(map[string]interface{}{"field": "status"})
	require.NotNil(t, err.Metadata)
	assert.Equal(t, "status", err.Metadata["field"])
}
