package slug

import (
	"strings"
	"testing"
)

func TestMakeBasic(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"simple title", "My First Thought", 30, "my-first-thought"},
		{"punctuation stripped", "Hello, World!", 30, "hello-world"},
		{"collapses whitespace", "too   many    spaces", 30, "too-many-spaces"},
		{"keeps hyphen and underscore", "semi-final draft_v2", 30, "semi-final-draft_v2"},
		{"lowercases", "SHOUTING Title", 30, "shouting-title"},
		{"truncates at word boundary", "one two three four five", 13, "one-two-three"},
		{"never splits a word", "alpha beta", 7, "alpha"},
		{"only punctuation yields empty", "!!! ??? ...", 30, ""},
		{"empty input", "", 30, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Make(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("Make(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestMakeFirstWordAlwaysIncluded(t *testing.T) {
	got := Make("supercalifragilistic", 5)
	if got != "supercalifragilistic" {
		t.Errorf("first word must survive even over the limit, got %q", got)
	}
}

func TestMakeLengthProperty(t *testing.T) {
	inputs := []string{
		"a moderately long thought title about nothing in particular",
		"short",
		"word " + strings.Repeat("x", 40) + " tail",
		"Trailing punctuation!!!",
	}
	for _, input := range inputs {
		for _, maxLen := range []int{10, 20, 30, 50} {
			got := Make(input, maxLen)
			firstWord := Make(input, 1)
			if len(got) > maxLen && got != firstWord {
				t.Errorf("Make(%q, %d) = %q exceeds limit", input, maxLen, got)
			}
			for _, r := range got {
				ok := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
				if !ok {
					t.Errorf("Make(%q, %d) produced disallowed rune %q", input, maxLen, r)
				}
			}
		}
	}
}

func TestUnique(t *testing.T) {
	existing := map[string]bool{
		"my-thought":   true,
		"my-thought-2": true,
	}
	taken := func(candidate string) bool { return existing[candidate] }

	if got := Unique("fresh", taken); got != "fresh" {
		t.Errorf("unsuffixed slug should win when free, got %q", got)
	}
	if got := Unique("my-thought", taken); got != "my-thought-3" {
		t.Errorf("expected my-thought-3, got %q", got)
	}
}
