package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// EnrollmentService is the interface that wraps methods for enrollment business logic.
type EnrollmentService interface {
	// Method Enroll enrolls the calling student in a published course.
	//
	// A second enrollment in the same course returns a conflict error and creates nothing.
	Enroll(ctx context.Context, actor models.Actor, courseID int) (*models.Enrollment, error)
	// Method Mine returns the calling student's enrollments with course summaries.
	Mine(ctx context.Context, actor models.Actor) ([]models.Enrollment, error)
	// Method ByCourse returns the enrollments of a course for its owner.
	ByCourse(ctx context.Context, actor models.Actor, courseID int) ([]models.Enrollment, error)
	// Method Unenroll deletes an enrollment together with the student's completions in that course.
	Unenroll(ctx context.Context, actor models.Actor, id int) error
}

// EnrollmentHandler handles enrollment-related HTTP requests
type EnrollmentHandler struct {
	BaseHandler
	enrollmentService EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService EnrollmentService, logger *zap.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler:       newBaseHandler(logger),
		enrollmentService: enrollmentService,
	}
}

// RegisterRoutes registers all enrollment handler routes
func (h *EnrollmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/enrollments", func(r chi.Router) {
		r.Post("/", h.Enroll)
		r.Get("/", h.Mine)
		r.Get("/course/{courseId}", h.ByCourse)
		r.Delete("/{id}", h.Unenroll)
	})
}

// Enroll handles POST /enrollments
// @Summary Enroll in course
// @Description Enroll the calling student in a published course. A duplicate enrollment is rejected.
// @Tags enrollments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.EnrollRequest true "Course to enroll in"
// @Success 201 {object} models.Enrollment
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Students only"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	enrollment, err := h.enrollmentService.Enroll(r.Context(), actor, req.CourseID)
	if err != nil {
		h.respondServiceError(w, err, "failed to enroll")
		return
	}

	h.RespondJSON(w, http.StatusCreated, enrollment)
}

// Mine handles GET /enrollments
// @Summary List own enrollments
// @Description Get the calling student's enrollments with course title, category, level and progress
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.Enrollment
// @Router /enrollments [get]
func (h *EnrollmentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	enrollments, err := h.enrollmentService.Mine(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to list enrollments")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(enrollments))
}

// ByCourse handles GET /enrollments/course/{courseId}
// @Summary List course enrollments
// @Description Get the students enrolled in a course with their progress. Owner faculty and admins only.
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 200 {array} models.Enrollment
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /enrollments/course/{courseId} [get]
func (h *EnrollmentHandler) ByCourse(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseId")
	if !ok {
		return
	}

	enrollments, err := h.enrollmentService.ByCourse(r.Context(), actor, courseID)
	if err != nil {
		h.respondServiceError(w, err, "failed to list enrollments")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(enrollments))
}

// Unenroll handles DELETE /enrollments/{id}
// @Summary Unenroll
// @Description Delete an enrollment and the student's completions for that course
// @Tags enrollments
// @Security ApiKeyAuth
// @Param id path int true "Enrollment ID"
// @Success 204 "Unenrolled"
// @Failure 403 {object} map[string]string "Not your enrollment"
// @Failure 404 {object} map[string]string "Enrollment not found"
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.enrollmentService.Unenroll(r.Context(), actor, id); err != nil {
		h.respondServiceError(w, err, "failed to unenroll")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
