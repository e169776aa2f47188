package study

import (
	"math/rand/v2"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/campusd/internal/textutil"
)

// Rand is the randomness GenerateQuiz draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// QuizQuestion is a fill-in-the-blank question with shuffled options.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// GenerateQuiz builds up to n questions from text. Sentences of at least six
// words are shuffled and at most 2n of them are tried; each yields a question
// by blanking one word of four or more word characters. Options are the
// answer plus its reversed, lowercased and uppercased forms, minus
// duplicates.
//
// Returns an error wrapping ErrInsufficientContent when no sentence is long
// enough or no question could be formed.
func GenerateQuiz(text string, n int, rng Rand) ([]QuizQuestion, error) {
	var candidates []string
	for _, s := range textutil.Sentences(text) {
		if len(strings.Fields(s)) >= minQuizWords {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, errNoCandidates
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if limit := max(n, 0) * candidatesPerItem; len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var questions []QuizQuestion
	for _, sentence := range candidates {
		q, ok := blankOut(sentence, rng)
		if !ok {
			continue
		}
		questions = append(questions, q)
		if len(questions) >= n {
			break
		}
	}
	if len(questions) == 0 {
		return nil, errNoQuestions
	}
	return questions, nil
}

// blankOut turns one sentence into a question, or reports false when no
// word qualifies as an answer.
func blankOut(sentence string, rng Rand) (QuizQuestion, bool) {
	words := strings.Fields(sentence)
	var eligible []int
	for i, w := range words {
		if utf8.RuneCountInString(textutil.StripNonWord(w)) >= minAnswerRunes {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return QuizQuestion{}, false
	}

	idx := eligible[rng.IntN(len(eligible))]
	answer := textutil.StripNonWord(words[idx])
	if answer == "" {
		return QuizQuestion{}, false
	}
	words[idx] = blankMarker

	options := append([]string{answer}, distractors(answer)...)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return QuizQuestion{
		Question:     strings.Join(words, " "),
		Options:      options,
		CorrectIndex: slices.Index(options, answer),
	}, true
}

// distractors returns the distinct variants of answer that differ from it.
func distractors(answer string) []string {
	var out []string
	for _, d := range []string{textutil.Reverse(answer), strings.ToLower(answer), strings.ToUpper(answer)} {
		if d == "" || d == answer || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	return out
}
