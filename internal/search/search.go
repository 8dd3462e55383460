package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultThought   ResultType = "thought"
	ResultIdea      ResultType = "idea"
	ResultHighlight ResultType = "highlight"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	IdeaSlug string     `json:"ideaSlug,omitempty"`
	IsDraft  bool       `json:"isDraft,omitempty"`
}

// Query describes a search request. PublicOnly queries never surface drafts
// or trashed thoughts.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	FilterIdea string
	Limit      int
	Offset     int
	PublicOnly bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexThought(t ThoughtRecord) error
	IndexIdea(i IdeaRecord) error
	IndexHighlight(h HighlightRecord) error
	DeleteThought(slug string) error
	DeleteIdea(slug string) error
	DeleteHighlight(id string) error
}

// ThoughtRecord is the data we index for a post. Content is plain text,
// stripped of markup before indexing.
type ThoughtRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	IdeaSlug string `json:"ideaSlug"`
	IsDraft  bool   `json:"isDraft"`
	IsTrash  bool   `json:"isTrash"`
}

// IdeaRecord is the data we index for a category.
type IdeaRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HighlightRecord is the data we index for a pinned link.
type HighlightRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
