package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testModule struct {
	Title string `json:"title" validate:"required,notblank"`
}

type testRequest struct {
	Name    string       `json:"name" validate:"required,notblank,max=10"`
	Email   string       `json:"email" validate:"required,email"`
	Level   *string      `json:"level,omitempty" validate:"omitempty,oneof=beginner advanced"`
	Modules []testModule `json:"modules" validate:"dive"`
}

func TestValidate(t *testing.T) {
	level := "expert"

	tests := []struct {
		name           string
		req            testRequest
		expectedFields []string
	}{
		{
			name: "valid",
			req:  testRequest{Name: "Ada", Email: "ada@example.com"},
		},
		{
			name:           "blank name and bad email",
			req:            testRequest{Name: "   ", Email: "nope"},
			expectedFields: []string{"name", "email"},
		},
		{
			name:           "pointer enum and nested module",
			req:            testRequest{Name: "Ada", Email: "ada@example.com", Level: &level, Modules: []testModule{{Title: "ok"}, {Title: " "}}},
			expectedFields: []string{"level", "modules[1].title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if len(tt.expectedFields) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			verr, ok := err.(*ValidationError)
			require.True(t, ok)
			assert.Len(t, verr.Fields, len(tt.expectedFields))
			for _, field := range tt.expectedFields {
				assert.Contains(t, verr.Fields, field)
			}
		})
	}

	t.Run("notblank message", func(t *testing.T) {
		err := Validate(&testRequest{Name: " ", Email: "ada@example.com"})
		require.Error(t, err)
		assert.Equal(t, "name cannot be blank", err.(*ValidationError).Fields["name"])
	})
}

func TestNewValidator(t *testing.T) {
	v, trans, err := newValidator()
	require.NoError(t, err)
	require.NotNil(t, trans)

	err = v.Struct(&testRequest{Name: " ", Email: "ada@example.com"})
	require.Error(t, err)
	fieldErrs, ok := isValidationErrors(err)
	require.True(t, ok)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "name cannot be blank", fieldErrs[0].Translate(trans))

	err = v.Struct(&testRequest{Name: "Ada"})
	fieldErrs, ok = isValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, "email is a required field", fieldErrs[0].Translate(trans))
}

func TestBaseHandler_DecodeJSON(t *testing.T) {
	h := &BaseHandler{Logger: zap.NewNop()}

	tests := []struct {
		name           string
		body           string
		expectedOK     bool
		expectedStatus int
		expectedError  string
	}{
		{name: "valid body", body: `{"name":"Ada","email":"ada@example.com"}`, expectedOK: true},
		{name: "empty body", body: ``, expectedStatus: http.StatusBadRequest, expectedError: "request body is required"},
		{name: "malformed", body: `{"name":`, expectedStatus: http.StatusBadRequest, expectedError: "invalid request body"},
		{name: "unknown field", body: `{"name":"Ada","email":"ada@example.com","admin":true}`, expectedStatus: http.StatusBadRequest, expectedError: "invalid request body"},
		{name: "validation failure", body: `{"name":"","email":"ada@example.com"}`, expectedStatus: http.StatusBadRequest, expectedError: "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst testRequest
			ok := h.DecodeJSON(w, req, &dst)

			assert.Equal(t, tt.expectedOK, ok)
			if tt.expectedOK {
				assert.Equal(t, "Ada", dst.Name)
				return
			}
			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedError, resp["error"])
		})
	}
}

func TestURLParamInt(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		expectedID    int
		expectedError bool
	}{
		{name: "valid", path: "/items/12", expectedID: 12},
		{name: "zero", path: "/items/0", expectedError: true},
		{name: "not a number", path: "/items/abc", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				id  int
				err error
			)
			r := chi.NewRouter()
			r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
				id, err = URLParamInt(req, "id")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedID, id)
		})
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		expectedPage  int
		expectedCount int
	}{
		{name: "defaults", query: "", expectedPage: 1, expectedCount: 10},
		{name: "explicit", query: "?page=3&count=25", expectedPage: 3, expectedCount: 25},
		{name: "capped", query: "?count=1000", expectedPage: 1, expectedCount: 100},
		{name: "invalid values", query: "?page=-2&count=x", expectedPage: 1, expectedCount: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, count := Pagination(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), 10, 100)
			assert.Equal(t, tt.expectedPage, page)
			assert.Equal(t, tt.expectedCount, count)
		})
	}
}
