package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Thought v1.2", "My-Thought-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "thought"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderThoughtHTML(t *testing.T) {
	data := TemplateData{
		Title:         "Test Thought",
		ContentHTML:   template.HTML("<p>This is the content.</p>"),
		Author:        "Robin",
		IdeaName:      "Engineering",
		DatePublished: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	html, err := RenderThoughtHTML(data)
	if err != nil {
		t.Fatalf("RenderThoughtHTML() error = %v", err)
	}

	if !strings.Contains(html, "Test Thought") {
		t.Error("HTML missing title")
	}
	if !strings.Contains(html, "Engineering") {
		t.Error("HTML missing idea name")
	}
	if !strings.Contains(html, "Robin") {
		t.Error("HTML missing author")
	}

	// content must be inlined raw, not escaped
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("HTML content was escaped - should be rendered as raw HTML")
	}
	if !strings.Contains(html, "<p>This is the content.</p>") {
		t.Error("HTML content should contain unescaped <p> tags")
	}
}

type fakeExportStore struct {
	thought ThoughtInfo
	idea    IdeaInfo
	fail    bool
}

func (f *fakeExportStore) GetExportThought(ctx context.Context, slug string) (ThoughtInfo, error) {
	if f.fail {
		return ThoughtInfo{}, errors.New("not found")
	}
	return f.thought, nil
}

func (f *fakeExportStore) GetExportIdea(ctx context.Context, slug string) (IdeaInfo, error) {
	return f.idea, nil
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewService(&fakeExportStore{
		thought: ThoughtInfo{Slug: "s", Title: "T", IdeaSlug: "i"},
		idea:    IdeaInfo{Slug: "i", Name: "Idea"},
	})

	_, err := svc.Export(context.Background(), Request{Slug: "s", Format: Format("docx")})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExportMissingThought(t *testing.T) {
	svc := NewService(&fakeExportStore{fail: true})

	_, err := svc.Export(context.Background(), Request{Slug: "missing", Format: FormatPDF})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}
