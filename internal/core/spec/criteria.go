// Package spec provides composable query specifications.
//
// A Criteria is a typed predicate tree. Every node renders itself as SQL through
// squirrel (relational stores) and evaluates itself against a decoded row (the
// in-memory store), so one specification drives both.
package spec

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Row is a decoded record keyed by column name.
type Row = map[string]any

// Criteria is a predicate over rows.
type Criteria interface {
	sq.Sqlizer
	// Match evaluates the predicate against a decoded row.
	Match(row Row) bool
	// Fields lists referenced column names, used for whitelisting.
	Fields() []string
}

// ComparisonType is a binary comparison operator.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	Greater        ComparisonType = "gt"
	GreaterOrEqual ComparisonType = "gte"
	Less           ComparisonType = "lt"
	LessOrEqual    ComparisonType = "lte"
)

type comparison struct {
	field string
	op    ComparisonType
	value any
}

// Eq matches field = value. A nil value matches NULL.
func Eq(field string, value any) Criteria { return comparison{field, Equal, value} }

// NotEq matches field <> value. A nil value matches NOT NULL.
func NotEq(field string, value any) Criteria { return comparison{field, NotEqual, value} }

// Gt matches field > value.
func Gt(field string, value any) Criteria { return comparison{field, Greater, value} }

// Gte matches field >= value.
func Gte(field string, value any) Criteria { return comparison{field, GreaterOrEqual, value} }

// Lt matches field < value.
func Lt(field string, value any) Criteria { return comparison{field, Less, value} }

// Lte matches field <= value.
func Lte(field string, value any) Criteria { return comparison{field, LessOrEqual, value} }

func (c comparison) ToSql() (string, []any, error) {
	switch c.op {
	case Equal:
		return sq.Eq{c.field: c.value}.ToSql()
	case NotEqual:
		return sq.NotEq{c.field: c.value}.ToSql()
	case Greater:
		return sq.Gt{c.field: c.value}.ToSql()
	case GreaterOrEqual:
		return sq.GtOrEq{c.field: c.value}.ToSql()
	case Less:
		return sq.Lt{c.field: c.value}.ToSql()
	case LessOrEqual:
		return sq.LtOrEq{c.field: c.value}.ToSql()
	}
	return "", nil, fmt.Errorf("unsupported operator %q", c.op)
}

func (c comparison) Match(row Row) bool {
	actual := row[c.field]
	switch c.op {
	case Equal:
		return equal(actual, c.value)
	case NotEqual:
		// SQL semantics: NULL <> x is unknown
		if isNil(actual) != isNil(c.value) {
			return !isNil(actual)
		}
		return !equal(actual, c.value)
	}

	cmp, ok := compare(actual, c.value)
	if !ok {
		return false
	}
	switch c.op {
	case Greater:
		return cmp > 0
	case GreaterOrEqual:
		return cmp >= 0
	case Less:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	}
	return false
}

func (c comparison) Fields() []string { return []string{c.field} }

func (c comparison) String() string {
	return fmt.Sprintf("%s %s %v", c.field, c.op, c.value)
}

type in struct {
	field  string
	values []any
}

// In matches field IN (values...). An empty list matches nothing.
func In[V any](field string, values ...V) Criteria {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return in{field: field, values: vs}
}

func (c in) ToSql() (string, []any, error) {
	if len(c.values) == 0 {
		return "(1=0)", nil, nil
	}
	return sq.Eq{c.field: c.values}.ToSql()
}

func (c in) Match(row Row) bool {
	actual := row[c.field]
	for _, v := range c.values {
		if equal(actual, v) {
			return true
		}
	}
	return false
}

func (c in) Fields() []string { return []string{c.field} }

type contains struct {
	field  string
	substr string
}

// Contains matches a case-insensitive substring.
func Contains(field, substr string) Criteria { return contains{field, substr} }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c contains) ToSql() (string, []any, error) {
	return sq.ILike{c.field: "%" + likeEscaper.Replace(c.substr) + "%"}.ToSql()
}

func (c contains) Match(row Row) bool {
	s, ok := deref(row[c.field]).(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(c.substr))
}

func (c contains) Fields() []string { return []string{c.field} }

type nullCheck struct {
	field  string
	isNull bool
}

// IsNull matches NULL values.
func IsNull(field string) Criteria { return nullCheck{field, true} }

// NotNull matches non-NULL values.
func NotNull(field string) Criteria { return nullCheck{field, false} }

func (c nullCheck) ToSql() (string, []any, error) {
	if c.isNull {
		return c.field + " IS NULL", nil, nil
	}
	return c.field + " IS NOT NULL", nil, nil
}

func (c nullCheck) Match(row Row) bool {
	return isNil(row[c.field]) == c.isNull
}

func (c nullCheck) Fields() []string { return []string{c.field} }

type junction struct {
	or    bool
	parts []Criteria
}

// And combines criteria with logical AND. Nil parts are skipped;
// And() with no parts is nil (no filter).
func And(parts ...Criteria) Criteria { return join(false, parts) }

// Or combines criteria with logical OR. Nil parts are skipped.
func Or(parts ...Criteria) Criteria { return join(true, parts) }

func join(or bool, parts []Criteria) Criteria {
	flat := make([]Criteria, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		if j, ok := p.(junction); ok && j.or == or {
			flat = append(flat, j.parts...)
			continue
		}
		flat = append(flat, p)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return junction{or: or, parts: flat}
}

func (j junction) ToSql() (string, []any, error) {
	if j.or {
		return sq.Or(toSqlizers(j.parts)).ToSql()
	}
	return sq.And(toSqlizers(j.parts)).ToSql()
}

func toSqlizers(parts []Criteria) []sq.Sqlizer {
	out := make([]sq.Sqlizer, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func (j junction) Match(row Row) bool {
	for _, p := range j.parts {
		if p.Match(row) == j.or {
			return j.or
		}
	}
	return !j.or
}

func (j junction) Fields() []string {
	var out []string
	for _, p := range j.parts {
		out = append(out, p.Fields()...)
	}
	return out
}

type not struct {
	inner Criteria
}

// Not negates c. A nil c stays nil.
func Not(c Criteria) Criteria {
	if c == nil {
		return nil
	}
	if n, ok := c.(not); ok {
		return n.inner
	}
	return not{c}
}

func (n not) ToSql() (string, []any, error) {
	s, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + s + ")", args, nil
}

func (n not) Match(row Row) bool { return !n.inner.Match(row) }

func (n not) Fields() []string { return n.inner.Fields() }
