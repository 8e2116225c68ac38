package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAIToolsService struct {
	materialSummary *models.MaterialSummary
	err             error

	calls    int
	lastID   int
	lastOpts models.SummaryOptions
}

// Summarize runs the real summarizer so the handler output can be checked end to end
func (m *mockAIToolsService) Summarize(ctx context.Context, req *models.SummarizeRequest) (*models.Summary, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	result := summary.Summarize(req.Text, models.SummaryOptions{MaxSentences: req.MaxSentences, MaxKeywords: req.MaxKeywords})
	return &result, nil
}

func (m *mockAIToolsService) MaterialSummary(ctx context.Context, actor models.Actor, id int, opts models.SummaryOptions) (*models.MaterialSummary, error) {
	m.calls++
	m.lastID, m.lastOpts = id, opts
	return m.materialSummary, m.err
}

func newAIToolsRouter(svc *mockAIToolsService) http.Handler {
	h := NewAIToolsHandler(svc, testLogger)
	return newTestRouter(false, func(r chi.Router, mw routeMiddlewares) {
		h.RegisterRoutes(r)
	})
}

func TestAIToolsHandler_Summarize(t *testing.T) {
	text := "Channels connect goroutines. Goroutines are cheap. Select waits on channels."

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedCalls  int
	}{
		{name: "summary", body: map[string]any{"text": text, "maxSentences": 2}, expectedStatus: http.StatusOK, expectedCalls: 1},
		{name: "blank text", body: map[string]any{"text": "   "}, expectedStatus: http.StatusBadRequest},
		{name: "too many sentences", body: map[string]any{"text": text, "maxSentences": 21}, expectedStatus: http.StatusBadRequest},
		{name: "too many keywords", body: map[string]any{"text": text, "maxKeywords": 31}, expectedStatus: http.StatusBadRequest},
		{name: "text too long", body: map[string]any{"text": strings.Repeat("a", 500001)}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAIToolsService{}

			w := doRequest(t, newAIToolsRouter(svc), http.MethodPost, "/api/ai-tools/summarize", tt.body, &student)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedCalls, svc.calls)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			got := decodeBody[models.Summary](t, w)
			assert.Len(t, got.Sentences, 2)
			assert.Equal(t, 3, got.SentenceCount)
			assert.Contains(t, got.Keywords, "goroutines")
		})
	}
}

func TestAIToolsHandler_MaterialSummary(t *testing.T) {
	t.Run("summary with options", func(t *testing.T) {
		svc := &mockAIToolsService{materialSummary: &models.MaterialSummary{MaterialID: 7, Title: "Notes"}}

		w := doRequest(t, newAIToolsRouter(svc), http.MethodPost, "/api/ai-tools/materials/7/summary", map[string]int{"maxSentences": 5}, &student)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7, svc.lastID)
		assert.Equal(t, 5, svc.lastOpts.MaxSentences)
		assert.Equal(t, "Notes", decodeBody[models.MaterialSummary](t, w).Title)
	})

	t.Run("without body", func(t *testing.T) {
		svc := &mockAIToolsService{materialSummary: &models.MaterialSummary{MaterialID: 7}}

		w := doRequest(t, newAIToolsRouter(svc), http.MethodPost, "/api/ai-tools/materials/7/summary", nil, &student)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.SummaryOptions{}, svc.lastOpts)
	})

	t.Run("unsupported format", func(t *testing.T) {
		svc := &mockAIToolsService{err: fmt.Errorf("only plain text, pdf and pptx materials can be summarized: %w", services.ErrUnsupportedMedia)}

		w := doRequest(t, newAIToolsRouter(svc), http.MethodPost, "/api/ai-tools/materials/7/summary", nil, &student)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, "only plain text, pdf and pptx materials can be summarized", errorMessage(t, w))
	})
}
