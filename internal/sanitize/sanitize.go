// Package sanitize cleans client-supplied names before they reach the
// filesystem.
package sanitize

import (
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultFilename replaces names that are empty after cleaning.
const DefaultFilename = "document"

// MaxFilenameLength bounds the cleaned name in bytes.
const MaxFilenameLength = 255

// Filename reduces an uploaded file name to a bare base name.
//
// Rules applied:
//   - Backslashes count as separators, so Windows paths lose their directories
//   - Control characters are dropped
//   - Names longer than MaxFilenameLength keep their extension
//   - "", ".", ".." and separators alone become DefaultFilename
//
// Examples:
//
//	"C:\Users\me\notes.txt" -> "notes.txt"
//	"../../etc/passwd"      -> "passwd"
//	""                      -> "document"
func Filename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	switch name {
	case "", ".", "..", "/":
		return DefaultFilename
	}

	if len(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) >= MaxFilenameLength {
			ext = ""
		}
		name = truncate(strings.TrimSuffix(name, ext), MaxFilenameLength-len(ext)) + ext
	}
	return name
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
