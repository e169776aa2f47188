// Package textutil segments document text into sentences, paragraphs and
// tokens for the study tools.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// sentenceBreak matches terminal punctuation followed by Unicode
	// whitespace (NBSP and em spaces included, as PDF text often has them).
	// The punctuation stays with the sentence it ends.
	sentenceBreak = regexp.MustCompile(`[.!?][\s\p{Z}\x{1c}-\x{1f}\x{85}]+`)

	// paragraphBreak matches a blank line, tolerating CRLF and
	// whitespace-only lines.
	paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

	tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// Sentences splits text after '.', '!' or '?' followed by whitespace.
// Results are trimmed and empty pieces dropped.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	var out []string
	start := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		out = appendTrimmed(out, text[start:loc[0]+1])
		start = loc[1]
	}
	return appendTrimmed(out, text[start:])
}

// Paragraphs splits text on blank lines. Results are trimmed and empty
// pieces dropped.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		out = appendTrimmed(out, p)
	}
	return out
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// TokenSet returns the lowercased ASCII alphanumeric runs of text longer
// than two characters.
func TokenSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range tokenPattern.FindAllString(text, -1) {
		if len(t) > 2 {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	return set
}

// StripNonWord removes every rune that is not a letter, digit or underscore.
func StripNonWord(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Reverse returns s with its runes in reverse order.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Truncate keeps the first n runes of s and appends suffix when anything was cut.
func Truncate(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + suffix
}
