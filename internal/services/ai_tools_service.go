package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/summary"
)

// Summary bounds
const (
	MaxSummarySentences = 20
	MaxSummaryKeywords  = 30
	// maxExtractBytes bounds how much of a stored file is read for text extraction
	maxExtractBytes = 32 << 20
)

// MaterialOpener opens the stored file of a material for a caller, applying the usual access rules
type MaterialOpener interface {
	// Method Open returns the material and a reader of its file. The caller closes the reader.
	Open(ctx context.Context, actor models.Actor, id int) (*models.Material, io.ReadCloser, error)
}

type aiToolsService struct {
	materials MaterialOpener
}

// NewAIToolsService creates a new ai tools service
func NewAIToolsService(materials MaterialOpener) *aiToolsService {
	return &aiToolsService{
		materials: materials,
	}
}

// Summarize returns an extractive summary of raw text
func (s *aiToolsService) Summarize(ctx context.Context, req *models.SummarizeRequest) (*models.Summary, error) {
	opts, err := summaryOptions(req.MaxSentences, req.MaxKeywords)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalidInput("text cannot be empty")
	}

	result := summary.Summarize(req.Text, opts)
	return &result, nil
}

// MaterialSummary extracts the text of a stored material and summarizes it
func (s *aiToolsService) MaterialSummary(ctx context.Context, actor models.Actor, id int, opts models.SummaryOptions) (*models.MaterialSummary, error) {
	opts, err := summaryOptions(opts.MaxSentences, opts.MaxKeywords)
	if err != nil {
		return nil, err
	}

	material, rc, err := s.materials.Open(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxExtractBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read material file: %w", err)
	}
	if len(data) > maxExtractBytes {
		return nil, invalidInput("material is too large to summarize")
	}

	text, err := summary.ExtractText(data, material.ContentType, material.FileName)
	if err != nil {
		if errors.Is(err, summary.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("only plain text, pdf and pptx materials can be summarized: %w", ErrUnsupportedMedia)
		}
		return nil, invalidInput("could not read material text: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalidInput("material has no text to summarize")
	}

	return &models.MaterialSummary{
		MaterialID: material.ID,
		Title:      material.Title,
		Summary:    summary.Summarize(text, opts),
	}, nil
}

// summaryOptions checks the requested bounds. Zero means the default.
func summaryOptions(maxSentences, maxKeywords int) (models.SummaryOptions, error) {
	if maxSentences < 0 || maxSentences > MaxSummarySentences {
		return models.SummaryOptions{}, invalidInput("maxSentences must be between 1 and %d", MaxSummarySentences)
	}
	if maxKeywords < 0 || maxKeywords > MaxSummaryKeywords {
		return models.SummaryOptions{}, invalidInput("maxKeywords must be between 1 and %d", MaxSummaryKeywords)
	}
	return models.SummaryOptions{MaxSentences: maxSentences, MaxKeywords: maxKeywords}, nil
}
