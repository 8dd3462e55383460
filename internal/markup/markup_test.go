package markup

import (
	"strings"
	"testing"
)

func TestSanitizeStripsDisallowedTags(t *testing.T) {
	input := `<script>alert(1)</script><strong>bold</strong><div>plain</div>`
	got := Sanitize(input, ThoughtTags)

	if strings.Contains(got, "<script>") || strings.Contains(got, "<div>") {
		t.Errorf("disallowed tags survived: %q", got)
	}
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("whitelisted tag was stripped: %q", got)
	}
}

func TestTruncateAppendsEllipsis(t *testing.T) {
	long := strings.Repeat("abcde ", 100)
	got := Truncate(long, 50, nil)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}

	short := "tiny"
	if got := Truncate(short, 50, nil); got != "tiny" {
		t.Errorf("short content must pass through, got %q", got)
	}
}

func TestTruncateUsesHighlightWhitelist(t *testing.T) {
	input := "<p>para</p><code>x</code>"
	got := Truncate(input, 100, HighlightTags)
	if !strings.Contains(got, "<p>para</p>") {
		t.Errorf("highlight whitelist should keep <p>: %q", got)
	}
	if strings.Contains(got, "<code>") {
		t.Errorf("highlight whitelist should drop <code>: %q", got)
	}
}

func TestImageSources(t *testing.T) {
	content := `<p>before</p>
<img src="/media/images/one.png" alt="one">
<img src="/media/images/two.png">
<img src="/media/images/one.png">
<img alt="no source">`

	got := ImageSources(content)
	want := []string{"/media/images/one.png", "/media/images/two.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sources, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("source %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestImageSourcesEmptyContent(t *testing.T) {
	if got := ImageSources("no images here"); len(got) != 0 {
		t.Errorf("expected no sources, got %v", got)
	}
}
