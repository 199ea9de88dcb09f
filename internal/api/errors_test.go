package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
	"github.com/phrazzld/taskhub-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"wrapped expired token", fmt.Errorf("authenticate: %w", auth.ErrExpiredToken), http.StatusUnauthorized},
		{"service not found", service.ErrTaskNotFound, http.StatusNotFound},
		{"store not found", store.ErrTaskNotFound, http.StatusNotFound},
		{
			"domain validation",
			domain.NewValidationError("priority", "must be between 1 and 5", domain.ErrInvalidPriority),
			http.StatusUnprocessableEntity,
		},
		{"invalid id", domain.ErrInvalidID, http.StatusUnprocessableEntity},
		{"invalid body", fmt.Errorf("%w: EOF", ErrInvalidRequestBody), http.StatusUnprocessableEntity},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{
			"processing unavailable",
			fmt.Errorf("%w: %w", service.ErrProcessingUnavailable, errors.New("queue full")),
			http.StatusServiceUnavailable,
		},
		{"transient store error", store.ErrTransient, http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{"expired token", auth.ErrExpiredToken, "Token expired"},
		{"not found", service.ErrTaskNotFound, "Task not found"},
		{
			"validation error keeps field message",
			domain.NewValidationError("title", "title is required", domain.ErrEmptyTitle),
			"Validation failed: title is required",
		},
		{"processing unavailable", service.ErrProcessingUnavailable, "Task processing is temporarily unavailable"},
		{
			"internal detail is hidden",
			errors.New("pq: relation tasks does not exist at /var/lib/db"),
			"An unexpected error occurred",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	t.Run("validation error carries fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
		req = req.WithContext(shared.WithTraceID(req.Context(), "trace-123"))
		rec := httptest.NewRecorder()

		err := domain.NewValidationError("priority", "must be between 1 and 5", domain.ErrInvalidPriority)
		HandleAPIError(rec, req, err, "")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "trace-123", body.TraceID)
		assert.Equal(t, map[string]string{"priority": "must be between 1 and 5"}, body.Fields)
	})

	t.Run("default message overrides safe message", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tasks/9", nil)
		rec := httptest.NewRecorder()

		HandleAPIError(rec, req, service.ErrTaskNotFound, "Task with ID 9 not found")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Task with ID 9 not found", body.Error)
		assert.Empty(t, body.Fields)
	})

	t.Run("internal error does not leak", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		rec := httptest.NewRecorder()

		HandleAPIError(rec, req, errors.New("dial tcp 10.0.0.5:5432: connection refused"), "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}
