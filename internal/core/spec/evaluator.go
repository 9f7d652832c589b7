package spec

// Queryable is a query under construction that a specification can be applied to.
type Queryable[Q any] interface {
	Where(c Criteria) Q
	Include(path string) Q
	OrderBy(o Order) Q
	Skip(n int) Q
	Take(n int) Q
}

// Evaluate applies s to base in order: criteria, include paths, ordering, skip/take.
// It performs no I/O and yields the same query shape for the same inputs.
func Evaluate[Q Queryable[Q], T any](base Q, s Specification[T]) Q {
	q := base
	if s.criteria != nil {
		q = q.Where(s.criteria)
	}
	for _, path := range s.includes {
		q = q.Include(path)
	}
	for _, o := range s.orders {
		q = q.OrderBy(o)
	}
	if s.skip > 0 {
		q = q.Skip(s.skip)
	}
	if s.take > 0 {
		q = q.Take(s.take)
	}
	return q
}
