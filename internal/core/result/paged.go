package result

// PagedList is one page of items plus paging metadata.
type PagedList[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

// TotalPages returns the number of pages for TotalCount.
func (p PagedList[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// HasPrevious reports whether a page precedes this one.
func (p PagedList[T]) HasPrevious() bool {
	return p.Page > 1
}

// HasNext reports whether a page follows this one.
func (p PagedList[T]) HasNext() bool {
	return p.Page < p.TotalPages()
}
