package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// Vectors are computed inline; the tables carry no dedicated fts columns.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across thoughts, ideas, and highlights
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultThought {
		vector := "to_tsvector('english', t.title || ' ' || t.content)"
		thoughtWhere := vector + " @@ " + tsQuery
		if q.FilterIdea != "" {
			thoughtWhere += fmt.Sprintf(" AND t.idea_slug = $%d", argN)
			args = append(args, q.FilterIdea)
			argN++
		}
		if q.PublicOnly {
			thoughtWhere += " AND t.is_draft = FALSE AND t.is_trash = FALSE"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'thought'::text AS type, t.slug AS id, t.title,
				ts_headline('english', t.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.idea_slug, t.is_draft,
				ts_rank(%s, %s) AS rank
			FROM thoughts t
			WHERE %s`, tsQuery, vector, tsQuery, thoughtWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultIdea {
		vector := "to_tsvector('english', i.name || ' ' || i.description)"
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'idea'::text AS type, i.slug AS id, i.name AS title,
				ts_headline('english', i.description, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				i.slug AS idea_slug, FALSE AS is_draft,
				ts_rank(%s, %s) AS rank
			FROM ideas i
			WHERE %s @@ %s`, tsQuery, vector, tsQuery, vector, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultHighlight {
		vector := "to_tsvector('english', h.title || ' ' || h.description)"
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'highlight'::text AS type, h.id, h.title,
				ts_headline('english', h.description, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS idea_slug, FALSE AS is_draft,
				ts_rank(%s, %s) AS rank
			FROM highlights h
			WHERE %s @@ %s`, tsQuery, vector, tsQuery, vector, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, idea_slug, is_draft
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.IdeaSlug, &r.IsDraft); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ThoughtRecord, []IdeaRecord, []HighlightRecord, error) {
	thoughtRows, err := p.db.QueryContext(ctx, `
		SELECT slug, title, content, idea_slug, is_draft, is_trash
		FROM thoughts
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load thoughts: %w", err)
	}
	defer thoughtRows.Close()

	thoughts := make([]ThoughtRecord, 0)
	for thoughtRows.Next() {
		var t ThoughtRecord
		if err := thoughtRows.Scan(&t.ID, &t.Title, &t.Content, &t.IdeaSlug, &t.IsDraft, &t.IsTrash); err != nil {
			return nil, nil, nil, fmt.Errorf("scan thought: %w", err)
		}
		thoughts = append(thoughts, t)
	}
	if err := thoughtRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate thoughts: %w", err)
	}

	ideaRows, err := p.db.QueryContext(ctx, `
		SELECT slug, name, description FROM ideas
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load ideas: %w", err)
	}
	defer ideaRows.Close()

	ideas := make([]IdeaRecord, 0)
	for ideaRows.Next() {
		var i IdeaRecord
		if err := ideaRows.Scan(&i.ID, &i.Name, &i.Description); err != nil {
			return nil, nil, nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, i)
	}
	if err := ideaRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate ideas: %w", err)
	}

	highlightRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description FROM highlights
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load highlights: %w", err)
	}
	defer highlightRows.Close()

	highlights := make([]HighlightRecord, 0)
	for highlightRows.Next() {
		var h HighlightRecord
		if err := highlightRows.Scan(&h.ID, &h.Title, &h.Description); err != nil {
			return nil, nil, nil, fmt.Errorf("scan highlight: %w", err)
		}
		highlights = append(highlights, h)
	}
	if err := highlightRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate highlights: %w", err)
	}

	return thoughts, ideas, highlights, nil
}
