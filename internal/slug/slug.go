// Package slug derives URL-safe identifiers from free-text titles.
package slug

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxLen is the rank applied when callers pass no explicit limit.
const DefaultMaxLen = 30

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9\-_]+`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Make builds a lowercase, hyphen-joined slug from source, truncated at a
// word boundary so the result stays within maxLen. The first word is always
// included even when it alone exceeds the limit. Input containing no
// alphanumeric runs yields "" — callers must treat that as invalid.
func Make(source string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	cleaned := disallowed.ReplaceAllString(source, " ")
	cleaned = spaces.ReplaceAllString(cleaned, " ")
	cleaned = strings.ToLower(strings.TrimSpace(cleaned))
	if cleaned == "" {
		return ""
	}

	words := strings.Split(cleaned, " ")
	tokens := []string{words[0]}
	counted := len(words[0]) + 1
	for _, word := range words[1:] {
		if counted+len(word) > maxLen {
			break
		}
		counted += len(word) + 1
		tokens = append(tokens, word)
	}
	return strings.Join(tokens, "-")
}

// Unique suffixes base with -2, -3, ... until taken reports the candidate
// as free. The unsuffixed base is tried first.
func Unique(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}
