package shared

import "math"

const (
	// DefaultPerPage applies when a listing does not ask for a page size.
	DefaultPerPage = 20
	// MaxPage is the highest page number a listing accepts.
	MaxPage = 1 << 20
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPagination normalises page and size and derives the page count. Pages
// are clamped to [1, MaxPage].
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page = ClampPage(page)
	total = max(total, 0)
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// ClampPage bounds a requested page number to [1, MaxPage].
func ClampPage(page int) int {
	return min(max(page, 1), MaxPage)
}

// PageOffset returns the row offset of page, saturating at math.MaxInt
// instead of overflowing.
func PageOffset(page, perPage int) int {
	page, perPage = max(page, 1), max(perPage, 0)
	if perPage == 0 {
		return 0
	}
	if page-1 > math.MaxInt/perPage {
		return math.MaxInt
	}
	return (page - 1) * perPage
}

// Offset returns the row offset of the current page.
func (p Pagination) Offset() int {
	return PageOffset(p.Page, p.PerPage)
}

// Bounds returns the half-open slice range of the page within Total rows,
// clamped so a page past the end is empty.
func (p Pagination) Bounds() (start, end int) {
	total := max(p.Total, 0)
	start = min(max(p.Offset(), 0), total)
	end = start + min(max(p.PerPage, 0), total-start)
	return start, end
}
