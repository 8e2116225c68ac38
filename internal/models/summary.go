package models

// SummarizeRequest asks for an extractive summary of raw text
type SummarizeRequest struct {
	Text         string `json:"text" validate:"required,notblank,max=500000"`
	MaxSentences int    `json:"maxSentences,omitempty" validate:"omitempty,min=1,max=20"`
	MaxKeywords  int    `json:"maxKeywords,omitempty" validate:"omitempty,min=1,max=30"`
}

// SummaryOptions bounds the size of a summary
type SummaryOptions struct {
	MaxSentences int `json:"maxSentences,omitempty" validate:"omitempty,min=1,max=20"`
	MaxKeywords  int `json:"maxKeywords,omitempty" validate:"omitempty,min=1,max=30"`
}

// Summary is the result of summarizing a text
type Summary struct {
	Summary       string   `json:"summary"`
	Sentences     []string `json:"sentences"`
	Keywords      []string `json:"keywords"`
	SentenceCount int      `json:"sentenceCount"`
	WordCount     int      `json:"wordCount"`
}

// MaterialSummary is the summary of a stored material's text
type MaterialSummary struct {
	MaterialID int    `json:"materialId"`
	Title      string `json:"title"`
	Summary
}
