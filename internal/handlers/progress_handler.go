package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// ProgressService is the interface that wraps methods for progress analytics.
type ProgressService interface {
	// Method Overview returns the calling student's per-course progress, totals and study statistics.
	Overview(ctx context.Context, actor models.Actor) (*models.ProgressOverview, error)
	// Method Course returns the calling student's progress in one course with the completed material IDs.
	Course(ctx context.Context, actor models.Actor, courseID int) (*models.CourseProgress, error)
	// Method Students returns the per-student progress of a course for its owner.
	Students(ctx context.Context, actor models.Actor, courseID int) ([]models.StudentProgress, error)
}

// ProgressHandler handles progress-related HTTP requests
type ProgressHandler struct {
	BaseHandler
	progressService ProgressService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progressService ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     newBaseHandler(logger),
		progressService: progressService,
	}
}

// RegisterRoutes registers all progress handler routes
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Route("/progress", func(r chi.Router) {
		r.Get("/", h.Overview)
		r.Get("/course/{courseId}", h.Course)
		r.Get("/course/{courseId}/students", h.Students)
	})
}

// Overview handles GET /progress
// @Summary Progress overview
// @Description Get per-course progress, courses enrolled and completed, average percentage, study totals and streak
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.ProgressOverview
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /progress [get]
func (h *ProgressHandler) Overview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	overview, err := h.progressService.Overview(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to get progress")
		return
	}
	overview.Courses = nonNil(overview.Courses)

	h.RespondJSON(w, http.StatusOK, overview)
}

// Course handles GET /progress/course/{courseId}
// @Summary Course progress
// @Description Get the calling student's progress in a course with the list of completed material IDs
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} models.CourseProgress
// @Failure 404 {object} map[string]string "Not enrolled"
// @Router /progress/course/{courseId} [get]
func (h *ProgressHandler) Course(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseId")
	if !ok {
		return
	}

	progress, err := h.progressService.Course(r.Context(), actor, courseID)
	if err != nil {
		h.respondServiceError(w, err, "failed to get course progress")
		return
	}

	h.RespondJSON(w, http.StatusOK, progress)
}

// Students handles GET /progress/course/{courseId}/students
// @Summary Course analytics
// @Description Get the progress of every student enrolled in a course. Owner faculty and admins only.
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 200 {array} models.StudentProgress
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /progress/course/{courseId}/students [get]
func (h *ProgressHandler) Students(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseId")
	if !ok {
		return
	}

	students, err := h.progressService.Students(r.Context(), actor, courseID)
	if err != nil {
		h.respondServiceError(w, err, "failed to get course analytics")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(students))
}
