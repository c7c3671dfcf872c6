package common

// Pagination helpers shared by the repository's local paging and the wire
// contract's pagination envelope.

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageParams represents pagination parameters
type PageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// DefaultPageParams returns default pagination parameters
func DefaultPageParams() PageParams {
	return PageParams{
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Normalize clamps parameters to valid ranges
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset calculates the slice offset for the page
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageInfo is the pagination envelope of the memo service
type PageInfo struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasMore     bool `json:"hasMore"`
	Limit       int  `json:"limit"`
}

// CalculateTotalPages calculates total number of pages
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}

// BuildPageInfo builds the pagination envelope for a page
func BuildPageInfo(page, pageSize, total int) PageInfo {
	totalPages := CalculateTotalPages(total, pageSize)

	return PageInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasMore:     page < totalPages,
		Limit:       pageSize,
	}
}

// PageBounds returns the [low, high) slice bounds for a page over a collection
// of n items, both clamped to n.
func PageBounds(p PageParams, n int) (int, int) {
	low := p.Offset()
	if low > n {
		low = n
	}
	high := low + p.PageSize
	if high > n {
		high = n
	}
	return low, high
}
