package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	authMiddleware "github.com/learnsy/backend/libs/auth/middleware"
	"github.com/learnsy/backend/libs/handlers"
	"go.uber.org/zap"
)

// BaseHandler adds actor lookup and service error mapping to the shared handler helpers
type BaseHandler struct {
	handlers.BaseHandler
}

func newBaseHandler(logger *zap.Logger) BaseHandler {
	return BaseHandler{BaseHandler: handlers.BaseHandler{Logger: logger}}
}

// errorStatuses is checked in order, the first match wins
var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrInvalidInput, http.StatusBadRequest},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrSessionClosed, http.StatusConflict},
	{services.ErrSessionExpired, http.StatusGone},
	{services.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
}

// actor builds the caller from the identity stored by the auth middleware
func (h *BaseHandler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	userID, ok := authMiddleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return models.Actor{}, false
	}
	role, ok := authMiddleware.GetRole(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: models.Role(role)}, true
}

// pathID parses a positive integer path parameter and writes a 400 response when it is invalid
func (h *BaseHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := handlers.URLParamInt(r, name)
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

// respondServiceError writes the status matching a service error.
// Unknown errors are logged and answered with 500 and the fallback message.
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			h.RespondError(w, es.status, clientMessage(err, es.err))
			return
		}
	}

	h.Logger.Error(fallback, zap.Error(err))
	h.RespondError(w, http.StatusInternalServerError, fallback)
}

// clientMessage drops the trailing sentinel text from a wrapped service error
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutSuffix(msg, ": "+sentinel.Error()); ok && trimmed != "" {
		return trimmed
	}
	return msg
}
