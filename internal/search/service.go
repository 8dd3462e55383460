package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres full-text search.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: sanitizeResults(nonNil(results), q.PublicOnly), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: sanitizeResults(nonNil(results), q.PublicOnly), Total: total, Query: q.Text}
}

// IndexThought indexes a thought (fire-and-forget to Meilisearch).
func (s *Service) IndexThought(t ThoughtRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexThought(t); err != nil {
			log.Printf("search: index thought %s: %v", t.ID, err)
		}
	}()
}

// IndexIdea indexes an idea (fire-and-forget to Meilisearch).
func (s *Service) IndexIdea(i IdeaRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexIdea(i); err != nil {
			log.Printf("search: index idea %s: %v", i.ID, err)
		}
	}()
}

// IndexHighlight indexes a highlight (fire-and-forget to Meilisearch).
func (s *Service) IndexHighlight(h HighlightRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexHighlight(h); err != nil {
			log.Printf("search: index highlight %s: %v", h.ID, err)
		}
	}()
}

// DeleteThought removes a thought from the search index (fire-and-forget).
func (s *Service) DeleteThought(slug string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteThought(slug); err != nil {
			log.Printf("search: delete thought %s: %v", slug, err)
		}
	}()
}

// DeleteIdea removes an idea from the search index (fire-and-forget).
func (s *Service) DeleteIdea(slug string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteIdea(slug); err != nil {
			log.Printf("search: delete idea %s: %v", slug, err)
		}
	}()
}

// DeleteHighlight removes a highlight from the search index (fire-and-forget).
func (s *Service) DeleteHighlight(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteHighlight(id); err != nil {
			log.Printf("search: delete highlight %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes full record sets into Meilisearch.
func (s *Service) ReindexAll(thoughts []ThoughtRecord, ideas []IdeaRecord, highlights []HighlightRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(thoughts) > 0 {
		if err := s.meili.IndexThoughts(thoughts); err != nil {
			log.Printf("search: reindex thoughts: %v", err)
		}
	}
	if len(ideas) > 0 {
		if err := s.meili.IndexIdeas(ideas); err != nil {
			log.Printf("search: reindex ideas: %v", err)
		}
	}
	if len(highlights) > 0 {
		if err := s.meili.IndexHighlights(highlights); err != nil {
			log.Printf("search: reindex highlights: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes every searchable entity from PostgreSQL into
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	thoughts, ideas, highlights, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(thoughts, ideas, highlights)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// sanitizeResults drops drafts from public responses even if the backing
// index served them.
func sanitizeResults(results []Result, publicOnly bool) []Result {
	if !publicOnly {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if result.Type == ResultThought && result.IsDraft {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered
}
