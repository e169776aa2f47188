// Package answer turns the best retrieved chunk into a short reply.
//
// Chunks built from FAQ and event rows carry textual markers
// ("FAQ: ... Answer: ...", "Event: ... Description: ..."). Synthesize
// recognises those shapes and extracts the useful part; any other text is
// cut down to its first sentence.
package answer

import (
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/index"
)

// Fallback is returned when retrieval produced nothing.
const Fallback = "I don't have enough information to answer this. Please check the campus portal."

// Chunk markers written by the corpus loader.
const (
	MarkerFAQ         = "FAQ:"
	MarkerAnswer      = "Answer:"
	MarkerEvent       = "Event:"
	MarkerDescription = "Description:"
)

// MaxPlainRunes caps answers taken from unmarked text without a period.
const MaxPlainRunes = 150

const ellipsis = "..."

var markerStripper = strings.NewReplacer(
	MarkerFAQ, "",
	MarkerEvent, "",
	MarkerDescription, "",
	MarkerAnswer, "",
)

// Synthesize returns the reply for the top-ranked chunk of a retrieval, or
// Fallback when there is none.
func Synthesize(chunks []index.RetrievedChunk) string {
	if len(chunks) == 0 {
		return Fallback
	}
	return FromText(chunks[0].Text)
}

// FromText applies the extraction rules to a single chunk text. It is pure:
// the same input always yields the same output.
func FromText(text string) string {
	if strings.Contains(text, MarkerFAQ) && strings.Contains(text, MarkerAnswer) {
		_, after, _ := strings.Cut(text, MarkerAnswer)
		return strings.TrimSpace(after)
	}

	if strings.Contains(text, MarkerEvent) && strings.Contains(text, MarkerDescription) {
		before, after, _ := strings.Cut(text, MarkerDescription)
		title := strings.TrimSpace(strings.ReplaceAll(before, MarkerEvent, ""))
		return title + ": " + strings.TrimSpace(after)
	}

	cleaned := strings.TrimSpace(markerStripper.Replace(text))
	if first, _, ok := strings.Cut(cleaned, "."); ok {
		return first + "."
	}
	return truncate(cleaned, MaxPlainRunes)
}

// truncate keeps the first n runes of s, appending an ellipsis when anything was cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ellipsis
}
