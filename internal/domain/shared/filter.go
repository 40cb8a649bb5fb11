package shared

// Filter holds the paging, sorting and search options of a list query.
// Pages count from 1.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// Offset is the number of rows before the requested page
func (f Filter) Offset() int {
	return max(f.Page-1, 0) * f.PageSize
}
