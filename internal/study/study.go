// Package study implements the document study tools: extractive summaries,
// fill-in-the-blank quizzes and keyword-overlap question answering.
//
// All functions operate on a document's extracted text and are pure except
// for GenerateQuiz, which draws from a caller-supplied Rand.
package study

import (
	"errors"
	"math"
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/textutil"
)

// ErrInsufficientContent is returned when a quiz cannot be built from a
// document. Its message is safe to show to users.
var ErrInsufficientContent = errors.New("insufficient content")

// insufficient wraps ErrInsufficientContent with a user-facing message.
type insufficient struct{ msg string }

func (e *insufficient) Error() string { return e.msg }
func (e *insufficient) Unwrap() error { return ErrInsufficientContent }

var (
	errNoCandidates = &insufficient{msg: "Not enough content to generate a quiz."}
	errNoQuestions  = &insufficient{msg: "Could not generate quiz questions from this document."}
)

// Fixed user-facing messages.
const (
	NoSummaryContent = "No textual content could be extracted from this document."
	NoReadableText   = "I could not find any readable text in this document."
	AskMoreSpecific  = "Please ask a more specific question about the document."
)

const (
	summarySentences  = 5
	summaryMaxRunes   = 800
	summaryEllipsis   = "..."
	minQuizWords      = 6
	minAnswerRunes    = 4
	blankMarker       = "____"
	candidatesPerItem = 2
)

// Summarize returns the first five sentences of text, capped at 800 runes.
func Summarize(text string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return NoSummaryContent
	}
	if len(sentences) > summarySentences {
		sentences = sentences[:summarySentences]
	}
	return textutil.Truncate(strings.Join(sentences, " "), summaryMaxRunes, summaryEllipsis)
}

// Answer returns the paragraph of text that best matches question. A
// paragraph scores |shared tokens| / sqrt(|paragraph tokens|); the first
// paragraph wins ties.
func Answer(text, question string) string {
	paragraphs := textutil.Paragraphs(text)
	if len(paragraphs) == 0 {
		return NoReadableText
	}
	q := textutil.TokenSet(question)
	if len(q) == 0 {
		return AskMoreSpecific
	}

	best, bestScore := paragraphs[0], -1.0
	for _, p := range paragraphs {
		tokens := textutil.TokenSet(p)
		if len(tokens) == 0 {
			continue
		}
		shared := 0
		for t := range q {
			if _, ok := tokens[t]; ok {
				shared++
			}
		}
		score := float64(shared) / math.Sqrt(float64(len(tokens)))
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}
