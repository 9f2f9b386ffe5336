// Package sanitize cleans user-supplied preset text before it is stored.
// Preset names become display labels and storage keys, and descriptions are
// echoed back through the CLI and MCP tools, so both are reduced to plain
// printable text of bounded length.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxNameLength is the maximum allowed length, in runes, of a preset name.
const MaxNameLength = 64

// MaxTextLength is the maximum allowed length, in runes, of a description
// or use-case string.
const MaxTextLength = 240

var (
	// reTag matches XML/HTML tags, including processing instructions.
	reTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reSpace matches runs of whitespace.
	reSpace = regexp.MustCompile(`\s+`)

	// rePunct matches runs of the same separator character.
	rePunct = regexp.MustCompile(`([-_.:])[-_.:]+`)
)

// PresetName keeps letters, digits, spaces and the separators - _ . : ( )
// collapses whitespace and repeated separators, and truncates to
// MaxNameLength runes.
func PresetName(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case strings.ContainsRune("-_.:()", r):
			b.WriteRune(r)
		}
	}
	s := reSpace.ReplaceAllString(b.String(), " ")
	s = rePunct.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	return truncate(s, MaxNameLength)
}

// Text strips control characters and markup tags from a description,
// collapses whitespace to single spaces, and truncates to MaxTextLength runes.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)
	s = reTag.ReplaceAllString(s, "")
	s = reSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return truncate(s, MaxTextLength)
}

// stripControlChars replaces control characters with spaces so adjacent
// words stay apart.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
