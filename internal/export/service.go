package export

import (
	"context"
	"fmt"
	"html/template"
)

// DataStore is the slice of storage the exporter reads from.
type DataStore interface {
	GetExportThought(ctx context.Context, slug string) (ThoughtInfo, error)
	GetExportIdea(ctx context.Context, slug string) (IdeaInfo, error)
}

// Service renders thoughts to downloadable files.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format. Content is stored
// sanitized, so it is safe to inline into the print template.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	thought, err := s.store.GetExportThought(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	idea, err := s.store.GetExportIdea(ctx, thought.IdeaSlug)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}

	data := TemplateData{
		Title:         thought.Title,
		ContentHTML:   template.HTML(thought.Content),
		Author:        thought.Author,
		IdeaName:      idea.Name,
		DatePublished: thought.DatePublished,
	}

	html, err := RenderThoughtHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, thought.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
