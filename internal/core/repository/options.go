package repository

import "time"

// MaxPageSize bounds GetPaged page sizes.
const MaxPageSize = 100

// DefaultCommandTimeout bounds a single operation when neither the options
// nor the repository configure a timeout.
const DefaultCommandTimeout = 30 * time.Second

// QueryOptions controls how a read is executed.
type QueryOptions struct {
	// TrackingEnabled registers returned entities with the unit of work so
	// SaveChanges can write back modifications.
	TrackingEnabled bool

	// SplitQuery loads include paths in separate concurrent round trips
	// when no transaction is open.
	SplitQuery bool

	// CommandTimeout bounds the operation; 0 uses the repository default.
	CommandTimeout time.Duration
}

// Presets.
var (
	ReadOnly      = QueryOptions{}
	ForUpdate     = QueryOptions{TrackingEnabled: true}
	ReadOnlySplit = QueryOptions{SplitQuery: true}
)

// WithTimeout returns a copy with CommandTimeout set.
func (o QueryOptions) WithTimeout(d time.Duration) QueryOptions {
	o.CommandTimeout = d
	return o
}

// ClampPage normalizes paging input: page >= 1, pageSize in [1, MaxPageSize].
func ClampPage(page, pageSize int) (int, int) {
	return max(page, 1), min(max(pageSize, 1), MaxPageSize)
}
