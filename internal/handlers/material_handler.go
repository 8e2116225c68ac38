package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to temp files
const multipartMemory = 32 << 20

// MaterialService is the interface that wraps methods for course material business logic.
type MaterialService interface {
	// Method Upload stores a new material at the end of its course.
	//
	// File materials need "upload.File", link materials need "upload.URL".
	Upload(ctx context.Context, actor models.Actor, upload *services.MaterialUpload) (*models.Material, error)
	// Method ListByCourse returns the ordered materials of a course with lock and completion flags for students.
	ListByCourse(ctx context.Context, actor models.Actor, courseID int) ([]models.MaterialView, error)
	// Method Get returns one material as seen by the caller.
	Get(ctx context.Context, actor models.Actor, id int) (*models.MaterialView, error)
	// Method Open returns the material and a reader of its stored file. The caller closes the reader.
	//
	// Locked materials return a forbidden error, link materials an invalid input error.
	Open(ctx context.Context, actor models.Actor, id int) (*models.Material, io.ReadCloser, error)
	// Method Update changes the title, description or position of a material.
	Update(ctx context.Context, actor models.Actor, id int, req *models.UpdateMaterialRequest) (*models.Material, error)
	// Method Delete removes a material and its stored file.
	Delete(ctx context.Context, actor models.Actor, id int) error
	// Method Complete records that the calling student finished a material and returns the updated enrollment.
	Complete(ctx context.Context, actor models.Actor, id int) (*models.Enrollment, error)
}

// MaterialHandler handles material-related HTTP requests
type MaterialHandler struct {
	BaseHandler
	materialService MaterialService
	maxUploadSize   int64
	transferTimeout time.Duration
}

// NewMaterialHandler creates a new material handler. "maxUploadSize" bounds the multipart body in bytes.
// Uploads and downloads get "transferTimeout" instead of the server read/write timeouts, zero keeps the server ones.
func NewMaterialHandler(materialService MaterialService, logger *zap.Logger, maxUploadSize int64, transferTimeout time.Duration) *MaterialHandler {
	return &MaterialHandler{
		BaseHandler:     newBaseHandler(logger),
		materialService: materialService,
		maxUploadSize:   maxUploadSize,
		transferTimeout: transferTimeout,
	}
}

// extendDeadlines moves the connection deadlines of a file transfer "transferTimeout" ahead
func (h *MaterialHandler) extendDeadlines(w http.ResponseWriter, read bool) {
	if h.transferTimeout <= 0 {
		return
	}
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(h.transferTimeout)
	if read {
		if err := rc.SetReadDeadline(deadline); err != nil {
			h.Logger.Debug("failed to extend read deadline", zap.Error(err))
		}
	}
	if err := rc.SetWriteDeadline(deadline); err != nil {
		h.Logger.Debug("failed to extend write deadline", zap.Error(err))
	}
}

// RegisterRoutes registers all material handler routes. "facultyMw" guards the routes that change materials.
func (h *MaterialHandler) RegisterRoutes(r chi.Router, facultyMw func(http.Handler) http.Handler) {
	r.Route("/materials", func(r chi.Router) {
		r.Get("/course/{courseId}", h.ListByCourse)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/download", h.Download)
		r.Post("/{id}/complete", h.Complete)
		r.Group(func(r chi.Router) {
			r.Use(facultyMw)
			r.Post("/", h.Upload)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// Upload handles POST /materials
// @Summary Upload material
// @Description Add a material to the end of a course. A file is required for every type except link, which needs a url.
// @Tags materials
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param courseId formData int true "Course ID"
// @Param title formData string true "Title"
// @Param type formData string true "Material type" Enums(video, text, pdf, image, link, quiz, assignment)
// @Param description formData string false "Description"
// @Param url formData string false "External URL (link materials)"
// @Param file formData file false "Material file"
// @Success 201 {object} models.Material
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 413 {object} map[string]string "File too large"
// @Router /materials [post]
func (h *MaterialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	h.extendDeadlines(w, true)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.RespondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	courseID, err := strconv.Atoi(r.FormValue("courseId"))
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid courseId")
		return
	}
	upload := &services.MaterialUpload{
		UploadMaterialRequest: models.UploadMaterialRequest{
			CourseID:    courseID,
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Type:        models.MaterialType(strings.ToLower(strings.TrimSpace(r.FormValue("type")))),
			URL:         strings.TrimSpace(r.FormValue("url")),
		},
	}
	if !h.ValidateRequest(w, &upload.UploadMaterialRequest) {
		return
	}

	file, fileHeader, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload.File = file
		upload.FileName = fileHeader.Filename
		upload.ContentType = fileContentType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
		upload.Size = fileHeader.Size
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.Logger.Error("failed to get material file from form", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, "failed to process file")
		return
	}

	material, err := h.materialService.Upload(r.Context(), actor, upload)
	if err != nil {
		h.respondServiceError(w, err, "failed to upload material")
		return
	}

	h.RespondJSON(w, http.StatusCreated, material)
}

// ListByCourse handles GET /materials/course/{courseId}
// @Summary List course materials
// @Description Get the ordered materials of a course. For students each item carries locked and completed flags, and locked items hide their url.
// @Tags materials
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 200 {array} models.MaterialView
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /materials/course/{courseId} [get]
func (h *MaterialHandler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseId")
	if !ok {
		return
	}

	materials, err := h.materialService.ListByCourse(r.Context(), actor, courseID)
	if err != nil {
		h.respondServiceError(w, err, "failed to list materials")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(materials))
}

// Get handles GET /materials/{id}
// @Summary Get material
// @Description Get one material with the same gating as the course list
// @Tags materials
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Success 200 {object} models.MaterialView
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Material not found"
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	material, err := h.materialService.Get(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err, "failed to get material")
		return
	}

	h.RespondJSON(w, http.StatusOK, material)
}

// Download handles GET /materials/{id}/download
// @Summary Download material
// @Description Stream the stored file of a material with range request support.
// @Tags materials
// @Produce application/octet-stream
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Param Range header string false "Range"
// @Success 200 "File content"
// @Success 206 "Partial file content (for range requests)"
// @Failure 400 {object} map[string]string "Link materials have no file"
// @Failure 403 {object} map[string]string "Locked or not enrolled"
// @Failure 404 {object} map[string]string "Material not found"
// @Router /materials/{id}/download [get]
func (h *MaterialHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	material, rc, err := h.materialService.Open(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err, "failed to open material")
		return
	}
	defer rc.Close()
	h.extendDeadlines(w, false)

	contentType := material.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": material.FileName}))

	// Seekable files get range support
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, material.FileName, material.CreatedAt, rs)
		return
	}

	if material.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(material.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("failed to stream material", zap.Int("materialId", id), zap.Error(err))
	}
}

// Update handles PUT /materials/{id}
// @Summary Update material
// @Description Change the title, description or position of a material
// @Tags materials
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Param request body models.UpdateMaterialRequest true "Fields to update"
// @Success 200 {object} models.Material
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Material not found"
// @Router /materials/{id} [put]
func (h *MaterialHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.UpdateMaterialRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	material, err := h.materialService.Update(r.Context(), actor, id, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to update material")
		return
	}

	h.RespondJSON(w, http.StatusOK, material)
}

// Delete handles DELETE /materials/{id}
// @Summary Delete material
// @Description Delete a material and its stored file
// @Tags materials
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Success 204 "Material deleted"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Material not found"
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.materialService.Delete(r.Context(), actor, id); err != nil {
		h.respondServiceError(w, err, "failed to delete material")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /materials/{id}/complete
// @Summary Complete material
// @Description Record that the calling student finished a material. Repeating it changes nothing.
// @Tags materials
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Success 200 {object} models.Enrollment
// @Failure 403 {object} map[string]string "Locked or not enrolled"
// @Failure 404 {object} map[string]string "Material not found"
// @Router /materials/{id}/complete [post]
func (h *MaterialHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	enrollment, err := h.materialService.Complete(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err, "failed to complete material")
		return
	}

	h.RespondJSON(w, http.StatusOK, enrollment)
}

// fileContentType falls back to the file extension when the part carries no usable content type
func fileContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if i := strings.LastIndex(filename, "."); i >= 0 {
		if byExt := mime.TypeByExtension(filename[i:]); byExt != "" {
			return byExt
		}
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
