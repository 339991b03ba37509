package shared

// Filter carries pagination and ordering options for list queries.
// OrderBy is validated against a per-repository whitelist before it is
// used in a query.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
	}
}
