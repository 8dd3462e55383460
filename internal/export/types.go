// Package export renders published thoughts to downloadable files.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format.
type Format string

const (
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation.
type Request struct {
	Slug   string
	Format Format
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ThoughtInfo is the thought data pulled for rendering.
type ThoughtInfo struct {
	Slug          string
	Title         string
	Content       string
	IdeaSlug      string
	Author        string
	DatePublished time.Time
}

// IdeaInfo names the idea a thought belongs to.
type IdeaInfo struct {
	Slug string
	Name string
}

var (
	// ErrContentUnavailable indicates the thought could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
