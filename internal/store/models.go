package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Idea groups thoughts on one line of inquiry. Slug is the primary key;
// Order is a unique, dense display rank starting at 1.
type Idea struct {
	Slug        string
	Name        string
	Description string
	Icon        string
	Order       int
	CreatedAt   time.Time
}

// Thought is a single post. IsDraft and IsTrash are independent flags;
// DatePublished moves only on the draft-to-published edge, DateEdited on
// every save.
type Thought struct {
	Slug          string
	Title         string
	Content       string
	IdeaSlug      string
	AuthorID      string
	IsDraft       bool
	IsTrash       bool
	DatePublished time.Time
	DateEdited    time.Time
	Preview       string
}

type Highlight struct {
	ID            string
	Title         string
	Description   string
	URL           string
	Icon          string
	DatePublished time.Time
}

type ReadingListItem struct {
	ID            string
	Title         string
	Author        string
	URL           string
	Cover         string
	Wishlist      bool
	Favorite      bool
	DateAdded     time.Time
	DatePublished *time.Time
}

// Task priorities. Completing a task resets its priority to low.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityNext   = "next"
)

type Task struct {
	ID            string
	Content       string
	ParentTaskID  *string
	Priority      string
	IsCompleted   bool
	DateCreated   time.Time
	DateCompleted *time.Time
}

// Note is a scratchpad entry optionally linked to many ideas and thoughts.
type Note struct {
	ID           string
	Content      string
	DateCreated  time.Time
	DateEdited   time.Time
	IdeaSlugs    []string
	ThoughtSlugs []string
}

// Activity is one immutable row of the action log. Tokens round-trips as
// JSON; rendering happens in the activity package.
type Activity struct {
	ID       int64
	AuthorID string
	Type     string
	Tokens   map[string]string
	URL      string
	Date     time.Time
}

// ThoughtFilter narrows ListThoughts/CountThoughts. Zero values mean
// "no constraint". When Exclude is set the equality/time filters are
// negated as a group, mirroring the public API's exclude parameter.
type ThoughtFilter struct {
	IdeaSlug  string
	AuthorID  string
	OlderThan *time.Time
	NewerThan *time.Time
	Exclude   bool

	// Lifecycle selection; PublicOnly wins over the two flags.
	PublicOnly bool
	DraftsOnly bool
	TrashOnly  bool

	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// SummaryCounts feeds the dashboard header.
type SummaryCounts struct {
	Ideas      int
	Published  int
	Drafts     int
	Trash      int
	Highlights int
	Reading    int
	OpenTasks  int
}
