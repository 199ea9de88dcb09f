package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// ErrInvalidRequestBody marks a request body that could not be decoded.
var ErrInvalidRequestBody = errors.New("invalid request body")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Request and domain validation
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, ErrInvalidRequestBody):
		return http.StatusUnprocessableEntity

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrProcessingUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Task not found"

	case errors.As(err, &validationErr):
		return "Validation failed: " + validationErr.Message
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return "Validation failed"
	case errors.Is(err, ErrInvalidRequestBody):
		return "Invalid request body"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	case errors.Is(err, service.ErrProcessingUnavailable):
		return "Task processing is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// ValidationFields extracts field-level detail from validator and domain
// validation errors. It returns nil when err carries none.
func ValidationFields(err error) map[string]string {
	if fields := shared.FieldErrors(err); fields != nil {
		return fields
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) && validationErr.Field != "" {
		return map[string]string{validationErr.Field: validationErr.Message}
	}
	return nil
}

// HandleAPIError writes the error response for err. defaultMsg replaces the
// safe message when non-empty. Validation failures carry per-field detail.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)

	msg := defaultMsg
	if msg == "" {
		msg = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if fields := ValidationFields(err); fields != nil {
		opts = append(opts, shared.WithFields(fields))
	}
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}
