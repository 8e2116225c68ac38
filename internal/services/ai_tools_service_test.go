package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/learnsy/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMaterialOpener serves one material with fixed content
type mockMaterialOpener struct {
	material *models.Material
	content  string
	err      error
	closed   bool
}

func (m *mockMaterialOpener) Open(ctx context.Context, actor models.Actor, id int) (*models.Material, io.ReadCloser, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.material, &trackedReader{Reader: strings.NewReader(m.content), closed: &m.closed}, nil
}

type trackedReader struct {
	io.Reader
	closed *bool
}

func (r *trackedReader) Close() error {
	*r.closed = true
	return nil
}

const lectureNotes = "Goroutines are cheap threads managed by the runtime. Channels connect goroutines. " +
	"The scheduler multiplexes goroutines onto threads. Channels can be buffered."

func TestAIToolsService_Summarize(t *testing.T) {
	svc := NewAIToolsService(&mockMaterialOpener{})

	tests := []struct {
		name              string
		req               models.SummarizeRequest
		expectedSentences int
		expectedError     error
	}{
		{name: "defaults", req: models.SummarizeRequest{Text: lectureNotes}, expectedSentences: 3},
		{name: "one sentence", req: models.SummarizeRequest{Text: lectureNotes, MaxSentences: 1, MaxKeywords: 2}, expectedSentences: 1},
		{name: "blank text", req: models.SummarizeRequest{Text: " \n\t "}, expectedError: ErrInvalidInput},
		{name: "too many sentences", req: models.SummarizeRequest{Text: lectureNotes, MaxSentences: MaxSummarySentences + 1}, expectedError: ErrInvalidInput},
		{name: "negative keywords", req: models.SummarizeRequest{Text: lectureNotes, MaxKeywords: -1}, expectedError: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			result, err := svc.Summarize(context.Background(), &req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Sentences, tt.expectedSentences)
			assert.Equal(t, 4, result.SentenceCount)
			assert.Contains(t, result.Keywords, "goroutines")
			assert.True(t, strings.HasPrefix(result.Summary, "Goroutines are cheap threads"))
		})
	}
}

func TestAIToolsService_MaterialSummary(t *testing.T) {
	textMaterial := &models.Material{ID: 3, Title: "Notes", Type: models.MaterialText, FileName: "notes.txt", ContentType: "text/plain; charset=utf-8", StorageKey: "k"}
	pdfMaterial := &models.Material{ID: 4, Title: "Slides", Type: models.MaterialPDF, FileName: "slides.pdf", ContentType: "application/pdf", StorageKey: "k"}
	imageMaterial := &models.Material{ID: 5, Title: "Diagram", Type: models.MaterialImage, FileName: "diagram.png", ContentType: "image/png", StorageKey: "k"}

	tests := []struct {
		name          string
		opener        *mockMaterialOpener
		opts          models.SummaryOptions
		expectedError error
	}{
		{name: "text material", opener: &mockMaterialOpener{material: textMaterial, content: lectureNotes}},
		{name: "broken pdf", opener: &mockMaterialOpener{material: pdfMaterial, content: "%PDF-1.7"}, expectedError: ErrUnsupportedMedia},
		{name: "image is not supported", opener: &mockMaterialOpener{material: imageMaterial, content: "\x89PNG"}, expectedError: ErrUnsupportedMedia},
		{name: "invalid utf-8", opener: &mockMaterialOpener{material: textMaterial, content: "\xff\xfe"}, expectedError: ErrUnsupportedMedia},
		{name: "empty text", opener: &mockMaterialOpener{material: textMaterial, content: "   "}, expectedError: ErrInvalidInput},
		{name: "locked material", opener: &mockMaterialOpener{err: forbidden("upgrade to premium to access this material")}, expectedError: ErrForbidden},
		{name: "bad options", opener: &mockMaterialOpener{material: textMaterial, content: lectureNotes}, opts: models.SummaryOptions{MaxKeywords: 99}, expectedError: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAIToolsService(tt.opener)

			result, err := svc.MaterialSummary(context.Background(), student, 3, tt.opts)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, result.MaterialID)
			assert.Equal(t, "Notes", result.Title)
			assert.Equal(t, 4, result.SentenceCount)
			assert.True(t, tt.opener.closed)
		})
	}

	t.Run("through the material service", func(t *testing.T) {
		f := newMaterialFixture()
		f.store.objects["materials/1/p1.pdf"] = []byte(lectureNotes)
		for i := range f.materials.materials {
			if f.materials.materials[i].ID == 2 {
				f.materials.materials[i].FileName = "notes.md"
				f.materials.materials[i].ContentType = "text/markdown"
			}
		}
		svc := NewAIToolsService(f.svc)

		result, err := svc.MaterialSummary(context.Background(), student, 2, models.SummaryOptions{MaxSentences: 2})
		require.NoError(t, err)
		assert.Len(t, result.Sentences, 2)

		_, err = svc.MaterialSummary(context.Background(), student, 7, models.SummaryOptions{})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.MaterialSummary(context.Background(), student2, 2, models.SummaryOptions{})
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}
