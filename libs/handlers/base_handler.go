package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// RespondValidationError sends a 400 response listing every invalid field by its JSON name
func (h *BaseHandler) RespondValidationError(w http.ResponseWriter, err *ValidationError) {
	h.RespondJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": err.Fields,
	})
}

// DecodeJSON decodes the request body into dst and validates it.
// On failure it writes the 400 response itself and returns false.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			h.RespondError(w, http.StatusBadRequest, "request body is required")
		default:
			h.RespondError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}

	return h.ValidateRequest(w, dst)
}

// ValidateRequest runs struct validation on req and writes a 400 response when it fails
func (h *BaseHandler) ValidateRequest(w http.ResponseWriter, req any) bool {
	if err := Validate(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.RespondValidationError(w, verr)
			return false
		}
		h.Logger.Error("failed to validate request", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// URLParamInt parses a positive integer path parameter
func URLParamInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// Pagination reads "page" and "count" query parameters. Invalid values fall back to the defaults.
func Pagination(r *http.Request, defaultCount, maxCount int) (int, int) {
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	count := defaultCount
	if c, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && c > 0 {
		count = c
	}
	if count > maxCount {
		count = maxCount
	}
	return page, count
}

// isValidationErrors reports whether err came from the validator
func isValidationErrors(err error) (validator.ValidationErrors, bool) {
	var verrs validator.ValidationErrors
	ok := errors.As(err, &verrs)
	return verrs, ok
}
