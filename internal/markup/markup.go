// Package markup sanitizes and inspects the whitelisted HTML stored in
// thought content and entity descriptions.
package markup

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// DefaultTruncateLength matches the teaser length used on list pages.
const DefaultTruncateLength = 250

// ThoughtTags is the whitelist applied to thought content.
var ThoughtTags = []string{
	"abbr", "ul", "blockquote", "code", "em", "strong", "li", "ol",
	"h1", "h2", "h3", "h4", "h5", "h6", "hr", "br",
}

// HighlightTags is the smaller whitelist applied to highlight descriptions.
var HighlightTags = []string{
	"p", "br", "em", "strong", "blockquote", "hr",
}

// Sanitize strips every tag not present in allowedTags. Comments are
// always removed.
func Sanitize(content string, allowedTags []string) string {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(allowedTags...)
	return policy.Sanitize(content)
}

// SanitizeContent keeps inline images in addition to the thought whitelist;
// it is applied once at save time so stored content is already clean.
func SanitizeContent(content string) string {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(ThoughtTags...)
	policy.AllowElements("p", "a", "img")
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowAttrs("src", "alt").OnElements("img")
	return policy.Sanitize(content)
}

// Truncate whitelists tags and cuts the result to maxLength runes, appending
// "..." whenever the original content was longer.
func Truncate(content string, maxLength int, allowedTags []string) string {
	if maxLength <= 0 {
		maxLength = DefaultTruncateLength
	}
	if allowedTags == nil {
		allowedTags = ThoughtTags
	}

	cleaned := Sanitize(content, allowedTags)
	runes := []rune(cleaned)
	if len(runes) > maxLength {
		cleaned = string(runes[:maxLength])
	}
	if len([]rune(content)) > maxLength {
		cleaned += "..."
	}
	return cleaned
}

// ImageSources returns the src attribute of every <img> in the fragment,
// in document order, without duplicates.
func ImageSources(content string) []string {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var sources []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "img" {
			for _, attr := range node.Attr {
				if attr.Key != "src" || attr.Val == "" {
					continue
				}
				if _, dup := seen[attr.Val]; dup {
					continue
				}
				seen[attr.Val] = struct{}{}
				sources = append(sources, attr.Val)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return sources
}
