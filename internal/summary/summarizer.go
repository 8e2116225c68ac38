// Package summary implements the naive extractive summarizer behind the AI tools:
// leading sentences plus word-frequency keywords.
package summary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/learnsy/backend/internal/models"
)

// Defaults and bounds for summaries
const (
	DefaultMaxSentences = 3
	DefaultMaxKeywords  = 5
	maxSentenceRunes    = 200
	minKeywordRunes     = 4
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	// a sentence ends at ., ! or ? followed by whitespace or the end of text
	sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)
)

// Summarize builds a summary of text. Zero options fall back to the defaults.
func Summarize(text string, opts models.SummaryOptions) models.Summary {
	maxSentences := opts.MaxSentences
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	maxKeywords := opts.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	normalized := Normalize(text)
	sentences := SplitSentences(normalized)
	words := Words(normalized)

	picked := make([]string, 0, min(maxSentences, len(sentences)))
	for _, s := range sentences {
		if len(picked) == maxSentences {
			break
		}
		picked = append(picked, truncateRunes(s, maxSentenceRunes))
	}

	return models.Summary{
		Summary:       strings.Join(picked, " "),
		Sentences:     picked,
		Keywords:      Keywords(words, maxKeywords),
		SentenceCount: len(sentences),
		WordCount:     len(words),
	}
}

// Normalize collapses every run of whitespace into a single space and trims the ends
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// SplitSentences splits normalized text into sentences, keeping their terminal punctuation
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		// loc[2] is where the trailing whitespace begins
		end := loc[2]
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Words returns the lower-cased letter/digit tokens of text
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns up to n of the most frequent non-stop-words with at least four runes.
// Ties are broken alphabetically.
func Keywords(words []string, n int) []string {
	counts := make(map[string]int)
	for _, w := range words {
		if utf8.RuneCountInString(w) < minKeywordRunes || isStopWord(w) {
			continue
		}
		counts[w]++
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		about above after again against also although among another anyone anything around because been before
		being below between both cannot could does doing done down during each either else even every from
		further have having here hers herself himself however into itself just least less like made make many
		more most much must myself neither never none nothing once only other ought ours ourselves over same
		shall should since some such than that their theirs them themselves then there these they this those
		though through thus under unless until upon very was were what whatever when where whether which while
		whom whose will with within without would your yours yourself yourselves`) {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
