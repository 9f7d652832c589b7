package spec

import "strings"

// Order is one ordering key.
type Order struct {
	Field string
	Desc  bool
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Desc: true} }

func (o Order) String() string {
	if o.Desc {
		return o.Field + " DESC"
	}
	return o.Field + " ASC"
}

// ParseOrder parses "field" or "-field" (descending).
func ParseOrder(s string) Order {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return Desc(s[1:])
	}
	return Asc(s)
}

// Specification describes a query over T: criteria, eager-load paths,
// ordering and paging. Specifications are immutable values; every builder
// returns a modified copy. The zero value matches everything.
type Specification[T any] struct {
	criteria       Criteria
	includes       []string
	orders         []Order
	skip           int
	take           int
	includeDeleted bool
}

// New returns an empty specification.
func New[T any]() Specification[T] {
	return Specification[T]{}
}

// Where returns a specification filtered by c.
func Where[T any](c Criteria) Specification[T] {
	return Specification[T]{criteria: c}
}

func (s Specification[T]) clone() Specification[T] {
	s.includes = append([]string(nil), s.includes...)
	s.orders = append([]Order(nil), s.orders...)
	return s
}

// Where adds c to the criteria with logical AND.
func (s Specification[T]) Where(c Criteria) Specification[T] {
	out := s.clone()
	out.criteria = And(s.criteria, c)
	return out
}

// Include adds eager-load paths. Duplicates are ignored.
func (s Specification[T]) Include(paths ...string) Specification[T] {
	out := s.clone()
	out.includes = mergeIncludes(out.includes, paths)
	return out
}

// OrderBy appends an ascending ordering key.
func (s Specification[T]) OrderBy(field string) Specification[T] {
	out := s.clone()
	out.orders = append(out.orders, Asc(field))
	return out
}

// OrderByDescending appends a descending ordering key.
func (s Specification[T]) OrderByDescending(field string) Specification[T] {
	out := s.clone()
	out.orders = append(out.orders, Desc(field))
	return out
}

// Skip sets the number of rows to skip.
func (s Specification[T]) Skip(n int) Specification[T] {
	out := s.clone()
	out.skip = max(n, 0)
	return out
}

// Take limits the number of rows returned. n <= 0 means no limit.
func (s Specification[T]) Take(n int) Specification[T] {
	out := s.clone()
	out.take = max(n, 0)
	return out
}

// Paginate sets skip/take for a 1-based page.
func (s Specification[T]) Paginate(page, pageSize int) Specification[T] {
	page = max(page, 1)
	pageSize = max(pageSize, 1)
	return s.Skip((page - 1) * pageSize).Take(pageSize)
}

// IncludeDeleted opts the query into soft-deleted rows.
func (s Specification[T]) IncludeDeleted() Specification[T] {
	out := s.clone()
	out.includeDeleted = true
	return out
}

// And combines two specifications: criteria are AND-ed, include paths are
// merged without duplicates. Ordering and paging come from s, falling back to other.
func (s Specification[T]) And(other Specification[T]) Specification[T] {
	out := s.clone()
	out.criteria = And(s.criteria, other.criteria)
	out.includes = mergeIncludes(out.includes, other.includes)
	if len(out.orders) == 0 {
		out.orders = append(out.orders, other.orders...)
	}
	if out.skip == 0 && out.take == 0 {
		out.skip, out.take = other.skip, other.take
	}
	out.includeDeleted = s.includeDeleted || other.includeDeleted
	return out
}

// Criteria returns the filter, nil when unfiltered.
func (s Specification[T]) Criteria() Criteria { return s.criteria }

// Includes returns a copy of the eager-load paths.
func (s Specification[T]) Includes() []string { return append([]string(nil), s.includes...) }

// Orders returns a copy of the ordering keys.
func (s Specification[T]) Orders() []Order { return append([]Order(nil), s.orders...) }

// Paging returns skip and take; take 0 means unlimited.
func (s Specification[T]) Paging() (skip, take int) { return s.skip, s.take }

// IsPaged reports whether skip or take is set.
func (s Specification[T]) IsPaged() bool { return s.skip > 0 || s.take > 0 }

// IncludesDeleted reports whether soft-deleted rows are requested.
func (s Specification[T]) IncludesDeleted() bool { return s.includeDeleted }

// Matches evaluates the criteria against a decoded row.
func (s Specification[T]) Matches(row Row) bool {
	return s.criteria == nil || s.criteria.Match(row)
}

func mergeIncludes(dst, src []string) []string {
	for _, p := range src {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, p)
		}
	}
	return dst
}
