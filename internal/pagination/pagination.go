// Package pagination computes page windows for list views.
package pagination

// Per-page and lead counts for the public and dashboard list views.
const (
	FrontPerPage            = 8
	IdeasPerPage            = 5
	ThoughtsPerPage         = 10
	ReadingListPerPage      = 20
	HighlightsPerPage       = 10
	ActivitiesPerPage       = 25
	DashboardListPerPage    = 25
	ThoughtsPagesToLead     = 2
	IdeasPagesToLead        = 2
	ReadingListPagesToLead  = 3
	HighlightsPagesToLead   = 3
	DashboardPagesToLead    = 2
)

// Pagination describes one page of a list plus the navigation window that
// drives "Prev ... 3 4 [5] 6 7 ... Next" controls. Next and Prev are 0 at
// the corresponding boundary. Start and End are half-open slice bounds into
// the full sequence (Start == End for an empty sequence).
type Pagination struct {
	First   int   `json:"first"`
	Last    int   `json:"last"`
	Current int   `json:"current"`
	Next    int   `json:"next,omitempty"`
	Prev    int   `json:"prev,omitempty"`
	Pages   []int `json:"pages"`
	Start   int   `json:"-"`
	End     int   `json:"-"`
}

// New computes the pagination descriptor for a sequence of total items.
// Out-of-range page requests clamp to the nearest valid page instead of
// failing; an empty sequence yields a single empty page.
func New(total, perPage, page, lead int) Pagination {
	if perPage < 1 {
		perPage = 1
	}

	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}

	if page < 1 {
		page = 1
	}
	if page > last {
		page = last
	}

	p := Pagination{
		First:   1,
		Last:    last,
		Current: page,
	}
	if page < last {
		p.Next = page + 1
	}
	if page > 1 {
		p.Prev = page - 1
	}

	lower, upper := page, page
	if lead > 0 {
		lower = page - lead
		if lower < 1 {
			lower = 1
		}
		upper = page + lead
		if upper > last {
			upper = last
		}
	}
	for n := lower; n <= upper; n++ {
		p.Pages = append(p.Pages, n)
	}

	p.Start = (page - 1) * perPage
	p.End = p.Start + perPage
	if p.Start > total {
		p.Start = total
	}
	if p.End > total {
		p.End = total
	}
	return p
}
