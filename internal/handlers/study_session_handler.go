package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/libs/handlers"
	"go.uber.org/zap"
)

// StudySessionService is the interface that wraps methods for study session tracking.
type StudySessionService interface {
	// Method Start opens a study session for the calling student, closing the open one as superseded.
	Start(ctx context.Context, actor models.Actor, req *models.StartSessionRequest) (*models.StudySession, error)
	// Method Ping keeps a session alive and optionally changes its activity.
	//
	// An ended session returns ErrSessionClosed, a session idle for too long is closed and returns ErrSessionExpired.
	Ping(ctx context.Context, actor models.Actor, id int, activity models.Activity) (*models.StudySession, error)
	// Method End closes a session. Ending an ended session returns it unchanged.
	End(ctx context.Context, actor models.Actor, id int) (*models.StudySession, error)
	// Method Active returns the calling student's open session.
	Active(ctx context.Context, actor models.Actor) (*models.StudySession, error)
	// Method List returns a page of the calling student's sessions, newest first.
	List(ctx context.Context, actor models.Actor, page, count int) ([]models.StudySession, error)
	// Method Stats returns per-day totals for the last "days" days with the day streak.
	Stats(ctx context.Context, actor models.Actor, days int) (*models.StudyStats, error)
}

// StudySessionHandler handles study-session HTTP requests
type StudySessionHandler struct {
	BaseHandler
	sessionService StudySessionService
}

// NewStudySessionHandler creates a new study session handler
func NewStudySessionHandler(sessionService StudySessionService, logger *zap.Logger) *StudySessionHandler {
	return &StudySessionHandler{
		BaseHandler:    newBaseHandler(logger),
		sessionService: sessionService,
	}
}

// RegisterRoutes registers all study session handler routes
func (h *StudySessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/study-sessions", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/", h.List)
		r.Get("/active", h.Active)
		r.Get("/stats", h.Stats)
		r.Post("/{id}/ping", h.Ping)
		r.Post("/{id}/end", h.End)
	})
}

// Start handles POST /study-sessions
// @Summary Start study session
// @Description Open a study session. An open session of the same student is closed as superseded.
// @Tags study-sessions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.StartSessionRequest false "Course and activity"
// @Success 201 {object} models.StudySession
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Students only"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /study-sessions [post]
func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.StartSessionRequest
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.sessionService.Start(r.Context(), actor, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to start study session")
		return
	}

	h.RespondJSON(w, http.StatusCreated, session)
}

// Ping handles POST /study-sessions/{id}/ping
// @Summary Ping study session
// @Description Keep a session alive. The duration only grows while the session is open.
// @Tags study-sessions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Session ID"
// @Param request body models.PingRequest false "New activity"
// @Success 200 {object} models.StudySession
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session already ended"
// @Failure 410 {object} map[string]string "Session expired"
// @Router /study-sessions/{id}/ping [post]
func (h *StudySessionHandler) Ping(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.PingRequest
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.sessionService.Ping(r.Context(), actor, id, req.Activity)
	if err != nil {
		h.respondServiceError(w, err, "failed to ping study session")
		return
	}

	h.RespondJSON(w, http.StatusOK, session)
}

// End handles POST /study-sessions/{id}/end
// @Summary End study session
// @Description Close a session. Ending an ended session returns it unchanged.
// @Tags study-sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.StudySession
// @Failure 404 {object} map[string]string "Session not found"
// @Router /study-sessions/{id}/end [post]
func (h *StudySessionHandler) End(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.End(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err, "failed to end study session")
		return
	}

	h.RespondJSON(w, http.StatusOK, session)
}

// Active handles GET /study-sessions/active
// @Summary Active study session
// @Description Get the calling student's open session
// @Tags study-sessions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.StudySession
// @Failure 404 {object} map[string]string "No open session"
// @Router /study-sessions/active [get]
func (h *StudySessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.Active(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to get active study session")
		return
	}

	h.RespondJSON(w, http.StatusOK, session)
}

// List handles GET /study-sessions
// @Summary Study session history
// @Description Get a page of the calling student's sessions, newest first
// @Tags study-sessions
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number (default: 1)"
// @Param count query int false "Items per page (default: 10, max: 100)"
// @Success 200 {array} models.StudySession
// @Router /study-sessions [get]
func (h *StudySessionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	page, count := handlers.Pagination(r, services.DefaultPageSize, services.MaxPageSize)

	sessions, err := h.sessionService.List(r.Context(), actor, page, count)
	if err != nil {
		h.respondServiceError(w, err, "failed to list study sessions")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(sessions))
}

// Stats handles GET /study-sessions/stats
// @Summary Study statistics
// @Description Get per-day totals for the last days (default 7, max 90), today's, weekly and all-time totals and the day streak
// @Tags study-sessions
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "Window in days"
// @Success 200 {object} models.StudyStats
// @Failure 400 {object} map[string]string "Invalid days"
// @Router /study-sessions/stats [get]
func (h *StudySessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = d
	}

	stats, err := h.sessionService.Stats(r.Context(), actor, days)
	if err != nil {
		h.respondServiceError(w, err, "failed to get study statistics")
		return
	}

	h.RespondJSON(w, http.StatusOK, stats)
}
