package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskhub-api/internal/api/middleware"
	"github.com/phrazzld/taskhub-api/internal/mocks"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		validateErr  error
		expectStatus int
		expectBody   string
	}{
		{"valid token", "Bearer good", nil, http.StatusOK, ""},
		{"lowercase scheme", "bearer good", nil, http.StatusOK, ""},
		{"missing header", "", nil, http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", nil, http.StatusUnauthorized, "Invalid authorization format"},
		{"empty token", "Bearer ", nil, http.StatusUnauthorized, "Invalid authorization format"},
		{"expired", "Bearer old", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer bad", auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
		{"not yet valid", "Bearer early", auth.ErrTokenNotYetValid, http.StatusUnauthorized, "Invalid token"},
		{"unexpected error", "Bearer x", errors.New("boom"), http.StatusInternalServerError, "Authentication error"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			jwtSvc := &mocks.MockJWTService{
				ValidateTokenFn: func(_ context.Context, token string) (*auth.Claims, error) {
					if tc.validateErr != nil {
						return nil, tc.validateErr
					}
					return &auth.Claims{Subject: "cli"}, nil
				},
			}

			var subject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, _ = middleware.GetSubject(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			middleware.NewAuthMiddleware(jwtSvc).Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.expectStatus, rec.Code)
			if tc.expectStatus == http.StatusOK {
				assert.Equal(t, "cli", subject)
				return
			}
			assert.Contains(t, rec.Body.String(), tc.expectBody)
			if tc.expectStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
