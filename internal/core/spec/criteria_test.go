package spec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriteria_ToSql(t *testing.T) {
	tests := []struct {
		name     string
		c        Criteria
		wantSQL  string
		wantArgs []any
	}{
		{"eq", Eq("name", "Electronics"), "name = ?", []any{"Electronics"}},
		{"eq nil", Eq("supplier_id", nil), "supplier_id IS NULL", nil},
		{"neq", NotEq("category_id", 3), "category_id <> ?", []any{3}},
		{"gt", Gt("quantity", 5), "quantity > ?", []any{5}},
		{"lte", Lte("quantity", 10), "quantity <= ?", []any{10}},
		{"in", In("id", int64(1), int64(2)), "id IN (?,?)", []any{int64(1), int64(2)}},
		{"in empty", In[int64]("id"), "(1=0)", nil},
		{"contains escapes wildcards", Contains("name", "50%_off"), "name ILIKE ?", []any{`%50\%\_off%`}},
		{"not null", NotNull("updated_at"), "updated_at IS NOT NULL", nil},
		{
			"and",
			And(Eq("category_id", 1), Eq("is_active", true)),
			"(category_id = ? AND is_active = ?)",
			[]any{1, true},
		},
		{
			"or inside and",
			And(Eq("is_deleted", false), Or(Lt("quantity", 1), IsNull("supplier_id"))),
			"(is_deleted = ? AND (quantity < ? OR supplier_id IS NULL))",
			[]any{false, 1},
		},
		{"not", Not(Eq("sku", "A-1")), "NOT (sku = ?)", []any{"A-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.c.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestCriteria_Match(t *testing.T) {
	supplier := int64(4)
	row := Row{
		"id":          int64(7),
		"name":        "USB Cable",
		"quantity":    12,
		"category_id": int64(1),
		"supplier_id": &supplier,
		"unit_price":  decimal.RequireFromString("9.90"),
		"is_active":   true,
		"created_at":  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"updated_at":  (*time.Time)(nil),
	}

	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"eq across int kinds", Eq("category_id", 1), true},
		{"eq pointer", Eq("supplier_id", 4), true},
		{"eq nil pointer", Eq("updated_at", nil), true},
		{"neq nil on null column", NotEq("updated_at", nil), false},
		{"neq value on null column", NotEq("updated_at", time.Now()), false},
		{"gt", Gt("quantity", 10), true},
		{"gte equal", Gte("quantity", 12), true},
		{"lt float", Lt("quantity", 12.5), true},
		{"decimal vs float", Gt("unit_price", 9.5), true},
		{"decimal vs decimal", Eq("unit_price", decimal.RequireFromString("9.9")), true},
		{"time", Lt("created_at", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)), true},
		{"in", In("id", int64(1), int64(7)), true},
		{"in miss", In("id", 2, 3), false},
		{"contains case-insensitive", Contains("name", "usb"), true},
		{"null check", IsNull("updated_at"), true},
		{"missing column is null", IsNull("nope"), true},
		{"gt on null is false", Gt("updated_at", time.Time{}), false},
		{"mismatched types", Gt("name", 3), false},
		{"bool", Eq("is_active", true), true},
		{"and", And(Eq("category_id", 1), Gt("quantity", 20)), false},
		{"or", Or(Eq("category_id", 2), Gt("quantity", 10)), true},
		{"not", Not(Contains("name", "hdmi")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Match(row))
		})
	}
}

func TestJunction_Flattening(t *testing.T) {
	assert.Nil(t, And())
	assert.Nil(t, And(nil, nil))

	single := Eq("a", 1)
	assert.Equal(t, single, And(nil, single))

	c := And(And(Eq("a", 1), Eq("b", 2)), Eq("c", 3))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, c.Fields())
	sql, _, err := c.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(a = ? AND b = ? AND c = ?)", sql)

	assert.Equal(t, single, Not(Not(single)))
}

func TestNot_NilStaysNil(t *testing.T) {
	assert.Nil(t, Not(nil))

	single := Eq("a", 1)
	assert.Equal(t, single, And(single, Not(nil)))
	assert.Equal(t, single, Or(Not(nil), single))
}

func TestCompareValues_NullsFirst(t *testing.T) {
	assert.Equal(t, -1, CompareValues(nil, 1))
	assert.Equal(t, 1, CompareValues("b", nil))
	assert.Equal(t, 0, CompareValues(nil, (*int)(nil)))
	assert.Equal(t, -1, CompareValues("a", "b"))
	assert.Equal(t, 1, CompareValues(int64(3), 2))
}
