package model

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is the metadata returned with every paged listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NormalizePage resets out of range page/limit values to their defaults and
// caps limit at maxLimit.
func NormalizePage(page, limit, maxLimit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// Offset is the number of rows skipped before the given page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

func NewPagination(page, limit, returned int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNext:     int64(Offset(page, limit)+returned) < total,
		HasPrev:     page > 1,
	}
}

type CustomerPage struct {
	Items      []*Customer
	Pagination Pagination
}

type TransactionPage struct {
	Items      []*Transaction
	Pagination Pagination
}

// Paging holds the configured page size bounds.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

func DefaultPaging() Paging {
	return Paging{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}
}

func (p Paging) Normalize(page, limit int) (int, int) {
	if limit < 1 && p.DefaultLimit > 0 {
		limit = p.DefaultLimit
	}
	return NormalizePage(page, limit, p.MaxLimit)
}
