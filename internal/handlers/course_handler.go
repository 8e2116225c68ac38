package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/libs/handlers"
	"go.uber.org/zap"
)

// CourseService is the interface that wraps methods for course business logic.
type CourseService interface {
	// Method List returns a page of the published catalog matching "filter".
	//
	// If the filter holds an unknown level, an invalid input error is returned.
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	// Method Get returns a course with its modules. Unpublished courses are only visible to their owner and admins.
	Get(ctx context.Context, actor models.Actor, id int) (*models.Course, error)
	// Method Mine returns the courses owned by "actor", published or not.
	Mine(ctx context.Context, actor models.Actor) ([]models.Course, error)
	// Method Create stores a new unpublished course owned by "actor".
	Create(ctx context.Context, actor models.Actor, req *models.CreateCourseRequest) (*models.Course, error)
	// Method Update changes the fields present in "req". Only the owner or an admin may update.
	Update(ctx context.Context, actor models.Actor, id int, req *models.UpdateCourseRequest) (*models.Course, error)
	// Method SetPublished sets the published flag. Setting the current state again is a no-op.
	SetPublished(ctx context.Context, actor models.Actor, id int, published bool) (*models.Course, error)
	// Method Delete removes a course and everything that cascades from it.
	Delete(ctx context.Context, actor models.Actor, id int) error
}

// CourseHandler handles course-related HTTP requests
type CourseHandler struct {
	BaseHandler
	courseService CourseService
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courseService CourseService, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler:   newBaseHandler(logger),
		courseService: courseService,
	}
}

// RegisterRoutes registers all course handler routes. "facultyMw" guards the faculty-only routes.
func (h *CourseHandler) RegisterRoutes(r chi.Router, facultyMw func(http.Handler) http.Handler) {
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(facultyMw)
			r.Get("/mine", h.Mine)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Patch("/{id}/publish", h.SetPublished)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /courses
// @Summary List published courses
// @Description Get a page of the published catalog with optional category, level and title search filters
// @Tags courses
// @Produce json
// @Security ApiKeyAuth
// @Param category query string false "Category"
// @Param level query string false "Level" Enums(beginner, intermediate, advanced)
// @Param search query string false "Title search"
// @Param page query int false "Page number (default: 1)"
// @Param count query int false "Items per page (default: 10, max: 100)"
// @Success 200 {array} models.Course
// @Failure 400 {object} map[string]string "Invalid level"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /courses [get]
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, count := handlers.Pagination(r, services.DefaultPageSize, services.MaxPageSize)
	filter := models.CourseFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
		Page:     page,
		Count:    count,
	}
	if level := strings.TrimSpace(query.Get("level")); level != "" {
		l := models.Level(strings.ToLower(level))
		filter.Level = &l
	}

	courses, err := h.courseService.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err, "failed to list courses")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(courses))
}

// Get handles GET /courses/{id}
// @Summary Get course
// @Description Get a course with its modules. Unpublished courses are only visible to their owner and admins.
// @Tags courses
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 200 {object} models.Course
// @Failure 400 {object} map[string]string "Invalid course ID"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	course, err := h.courseService.Get(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err, "failed to get course")
		return
	}

	h.RespondJSON(w, http.StatusOK, course)
}

// Mine handles GET /courses/mine
// @Summary List own courses
// @Description Get the courses owned by the calling faculty member, published or not
// @Tags courses
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.Course
// @Failure 403 {object} map[string]string "Faculty only"
// @Router /courses/mine [get]
func (h *CourseHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	courses, err := h.courseService.Mine(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to list courses")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(courses))
}

// Create handles POST /courses
// @Summary Create course
// @Description Create an unpublished course with optional modules
// @Tags courses
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateCourseRequest true "Course"
// @Success 201 {object} models.Course
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Faculty only"
// @Router /courses [post]
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.CreateCourseRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.courseService.Create(r.Context(), actor, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to create course")
		return
	}

	h.RespondJSON(w, http.StatusCreated, course)
}

// Update handles PUT /courses/{id}
// @Summary Update course
// @Description Update the given fields. When modules are given they replace the syllabus in the given order.
// @Tags courses
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Param request body models.UpdateCourseRequest true "Fields to update"
// @Success 200 {object} models.Course
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.UpdateCourseRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.courseService.Update(r.Context(), actor, id, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to update course")
		return
	}

	h.RespondJSON(w, http.StatusOK, course)
}

// SetPublished handles PATCH /courses/{id}/publish
// @Summary Publish or unpublish course
// @Description Set the published flag. Setting the current state again returns the course unchanged.
// @Tags courses
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Param request body models.PublishRequest true "Published flag"
// @Success 200 {object} models.Course
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /courses/{id}/publish [patch]
func (h *CourseHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.PublishRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	course, err := h.courseService.SetPublished(r.Context(), actor, id, *req.Published)
	if err != nil {
		h.respondServiceError(w, err, "failed to publish course")
		return
	}

	h.RespondJSON(w, http.StatusOK, course)
}

// Delete handles DELETE /courses/{id}
// @Summary Delete course
// @Description Delete a course with its modules, materials, completions and enrollments
// @Tags courses
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 204 "Course deleted"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(r.Context(), actor, id); err != nil {
		h.respondServiceError(w, err, "failed to delete course")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty lists encode as [] instead of null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
