package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/learnsy/backend/libs/auth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	roleStudent = 1
	roleFaculty = 2
	roleAdmin   = 3
)

func identityHandler(t *testing.T, expectedUserID, expectedRole int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		require.True(t, ok)
		role, ok := GetRole(r.Context())
		require.True(t, ok)
		assert.Equal(t, expectedUserID, userID)
		assert.Equal(t, expectedRole, role)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tg := service.NewTokenGenerator("middleware-secret", time.Hour, time.Hour)
	accessToken, _, err := tg.GenerateTokens(42, roleFaculty)
	require.NoError(t, err)

	tests := []struct {
		name           string
		prepare        func(r *http.Request)
		expectedStatus int
	}{
		{
			name:           "bearer header",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+accessToken) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "lower-case scheme",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "bearer "+accessToken) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cookie fallback",
			prepare:        func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken}) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "no token",
			prepare:        func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tg)(identityHandler(t, 42, roleFaculty))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	tg := service.NewTokenGenerator("middleware-secret", time.Hour, time.Hour)

	tests := []struct {
		name           string
		role           int
		allowed        []int
		expectedStatus int
	}{
		{name: "student allowed", role: roleStudent, allowed: []int{roleStudent}, expectedStatus: http.StatusOK},
		{name: "faculty rejected on student route", role: roleFaculty, allowed: []int{roleStudent}, expectedStatus: http.StatusForbidden},
		{name: "admin allowed on faculty route", role: roleAdmin, allowed: []int{roleFaculty, roleAdmin}, expectedStatus: http.StatusOK},
		{name: "student rejected on faculty route", role: roleStudent, allowed: []int{roleFaculty, roleAdmin}, expectedStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accessToken, _, err := tg.GenerateTokens(7, tt.role)
			require.NoError(t, err)

			handler := RoleMiddleware(tg, tt.allowed...)(identityHandler(t, 7, tt.role))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+accessToken)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	t.Run("missing token", func(t *testing.T) {
		handler := RoleMiddleware(tg, roleStudent)(http.NotFoundHandler())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
