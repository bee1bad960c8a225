package api

import (
	"fmt"
	"net/http"

	"trade-match-engine/internal/common/errors"
)

// statusFor maps engine error codes to HTTP statuses.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidTransition,
		errors.ErrCodeDuplicateApplication,
		errors.ErrCodeConcurrentUpdate:
		return http.StatusConflict
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFilterFormat:
		return http.StatusBadRequest
	case errors.ErrCodeSearchTimeout, errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeSearchQueryFailed,
		errors.ErrCodeCacheFailed,
		errors.ErrCodeExternalServiceError,
		errors.ErrCodeAIScoringFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.AsStandard(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"code":  stdErr.Code,
			"error": err,
		})
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      stdErr.Code,
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		},
	})
}

func httpError(w http.ResponseWriter, status int, code, format string, args ...interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": fmt.Sprintf(format, args...),
		},
	})
}
