package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// AIToolsService is the interface that wraps the summarization tools.
type AIToolsService interface {
	// Method Summarize returns an extractive summary of raw text.
	Summarize(ctx context.Context, req *models.SummarizeRequest) (*models.Summary, error)
	// Method MaterialSummary extracts the text of a stored material and summarizes it.
	//
	// Formats other than plain text, pdf and pptx return ErrUnsupportedMedia.
	MaterialSummary(ctx context.Context, actor models.Actor, id int, opts models.SummaryOptions) (*models.MaterialSummary, error)
}

// AIToolsHandler handles the document tool HTTP requests
type AIToolsHandler struct {
	BaseHandler
	aiToolsService AIToolsService
}

// NewAIToolsHandler creates a new ai tools handler
func NewAIToolsHandler(aiToolsService AIToolsService, logger *zap.Logger) *AIToolsHandler {
	return &AIToolsHandler{
		BaseHandler:    newBaseHandler(logger),
		aiToolsService: aiToolsService,
	}
}

// RegisterRoutes registers all ai tools handler routes
func (h *AIToolsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ai-tools", func(r chi.Router) {
		r.Post("/summarize", h.Summarize)
		r.Post("/materials/{id}/summary", h.MaterialSummary)
	})
}

// Summarize handles POST /ai-tools/summarize
// @Summary Summarize text
// @Description Return the leading sentences of a text and its most frequent keywords
// @Tags ai-tools
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.SummarizeRequest true "Text and limits"
// @Success 200 {object} models.Summary
// @Failure 400 {object} map[string]string "Validation failed"
// @Router /ai-tools/summarize [post]
func (h *AIToolsHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.aiToolsService.Summarize(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to summarize text")
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// MaterialSummary handles POST /ai-tools/materials/{id}/summary
// @Summary Summarize material
// @Description Extract the text of a plain text, pdf or pptx material and summarize it. The download access rules apply.
// @Tags ai-tools
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Material ID"
// @Param request body models.SummaryOptions false "Limits"
// @Success 200 {object} models.MaterialSummary
// @Failure 403 {object} map[string]string "Locked or not enrolled"
// @Failure 404 {object} map[string]string "Material not found"
// @Failure 415 {object} map[string]string "Unsupported format"
// @Router /ai-tools/materials/{id}/summary [post]
func (h *AIToolsHandler) MaterialSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var opts models.SummaryOptions
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &opts) {
		return
	}

	result, err := h.aiToolsService.MaterialSummary(r.Context(), actor, id, opts)
	if err != nil {
		h.respondServiceError(w, err, "failed to summarize material")
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}
