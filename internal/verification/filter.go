package verification

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListFilter selects a page of requests. Changing any filter criterion resets Page to 1.
type ListFilter struct {
	Search   string
	Status   Status
	AgentID  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// WithSearch returns a copy filtered by free text, back on the first page.
func (f ListFilter) WithSearch(search string) ListFilter {
	f.Search = search
	f.Page = 1
	return f
}

// WithStatus returns a copy filtered by status, back on the first page.
func (f ListFilter) WithStatus(status Status) ListFilter {
	f.Status = status
	f.Page = 1
	return f
}

// WithAgent returns a copy filtered by creating agent, back on the first page.
func (f ListFilter) WithAgent(agentID string) ListFilter {
	f.AgentID = agentID
	f.Page = 1
	return f
}

// WithDateRange returns a copy filtered by creation time, back on the first page.
func (f ListFilter) WithDateRange(from, to *time.Time) ListFilter {
	f.From = from
	f.To = to
	f.Page = 1
	return f
}

// WithPage returns a copy positioned on page, keeping every criterion.
func (f ListFilter) WithPage(page int) ListFilter {
	f.Page = page
	return f
}

// Normalize clamps paging values into their allowed ranges.
func (f ListFilter) Normalize() ListFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped before the current page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether r satisfies every criterion except paging.
func (f ListFilter) Matches(r Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.From != nil && r.Timeline.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timeline.CreatedAt.After(*f.To) {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, hay := range []string{r.ID, r.Customer.FullName(), r.Customer.Email, r.Customer.Phone} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// ListResult is a page of requests.
type ListResult struct {
	Items      []Request `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

func newListResult(items []Request, total int, f ListFilter) ListResult {
	pages := 0
	if total > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	if items == nil {
		items = []Request{}
	}
	return ListResult{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize, TotalPages: pages}
}
