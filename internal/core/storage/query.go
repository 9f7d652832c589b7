package storage

import (
	"stockroom/internal/core/spec"
)

// Query is a store-agnostic select over one table.
type Query struct {
	Table    string
	Columns  []string
	Criteria spec.Criteria
	Includes []string
	Orders   []spec.Order
	Offset   int
	Limit    int // 0 means no limit
	Lock     bool
}

// From starts a query over table.
func From(table string, columns ...string) Query {
	return Query{Table: table, Columns: append([]string(nil), columns...)}
}

func (q Query) clone() Query {
	q.Columns = append([]string(nil), q.Columns...)
	q.Includes = append([]string(nil), q.Includes...)
	q.Orders = append([]spec.Order(nil), q.Orders...)
	return q
}

// Where adds c with logical AND.
func (q Query) Where(c spec.Criteria) Query {
	out := q.clone()
	out.Criteria = spec.And(q.Criteria, c)
	return out
}

// Include records an eager-load path. Stores ignore it; the repository resolves includes.
func (q Query) Include(path string) Query {
	out := q.clone()
	for _, p := range out.Includes {
		if p == path {
			return out
		}
	}
	out.Includes = append(out.Includes, path)
	return out
}

// OrderBy appends an ordering key.
func (q Query) OrderBy(o spec.Order) Query {
	out := q.clone()
	out.Orders = append(out.Orders, o)
	return out
}

// Skip sets the offset.
func (q Query) Skip(n int) Query {
	out := q.clone()
	out.Offset = max(n, 0)
	return out
}

// Take sets the limit.
func (q Query) Take(n int) Query {
	out := q.clone()
	out.Limit = max(n, 0)
	return out
}

// ForUpdate locks selected rows until the transaction ends.
func (q Query) ForUpdate() Query {
	out := q.clone()
	out.Lock = true
	return out
}

// Unpaged drops ordering and paging, the shape used for counts.
func (q Query) Unpaged() Query {
	out := q.clone()
	out.Orders = nil
	out.Offset = 0
	out.Limit = 0
	return out
}
