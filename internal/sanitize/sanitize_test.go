package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPresetName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"passthrough clean name", "Paper: Balanced", "Paper: Balanced"},
		{"version label", "v2.2.1: Strong", "v2.2.1: Strong"},
		{"strip markup characters", "My <b>Look</b>", "My bLookb"},
		{"collapse whitespace", "  warm \t\n glow  ", "warm glow"},
		{"collapse repeated separators", "warm---glow__x", "warm-glow_x"},
		{"keep parentheses", "Soft (portrait)", "Soft (portrait)"},
		{"keep non-ascii letters", "Très doux", "Très doux"},
		{"truncate", strings.Repeat("a", 100), strings.Repeat("a", MaxNameLength)},
		{"empty input", "", ""},
		{"all invalid characters", "!@#$%^&*", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PresetName(tt.input); got != tt.want {
				t.Errorf("PresetName(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"passthrough", "Gentle scaffolding removal", "Gentle scaffolding removal"},
		{"strip tags", "Use <script>alert(1)</script> carefully", "Use alert(1) carefully"},
		{"strip processing instruction", `<?xml version="1.0"?>Room`, "Room"},
		{"control characters become spaces", "line\x00one\x1btwo", "line one two"},
		{"newlines collapse", "first\n\n\nsecond", "first second"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestText_TruncatesByRune(t *testing.T) {
	got := Text(strings.Repeat("é", MaxTextLength+20))
	if n := utf8.RuneCountInString(got); n != MaxTextLength {
		t.Errorf("rune count = %d, want %d", n, MaxTextLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte rune")
	}
}
