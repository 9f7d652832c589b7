package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/spec"
)

type widget struct {
	entity.Base
	Name     string          `db:"name"`
	Price    decimal.Decimal `db:"price"`
	Quantity int             `db:"quantity"`
	OwnerID  *int64          `db:"owner_id"`
	Owner    *widget         `db:"-"`
}

func TestColumns(t *testing.T) {
	cols := Columns[widget]()
	assert.Equal(t, []string{
		"id", "lifecycle", "created_at", "created_by", "updated_at", "updated_by", "version",
		"name", "price", "quantity", "owner_id",
	}, cols)

	persisted := PersistedColumns(cols)
	assert.Contains(t, persisted, ColumnIsActive)
	assert.Contains(t, persisted, ColumnIsDeleted)
	assert.NotContains(t, persisted, ColumnLifecycle)
}

func TestEncodeRow_ExpandsLifecycle(t *testing.T) {
	w := &widget{Name: "bolt", Quantity: 3}
	w.ID = 5
	w.MarkDeleted()

	row := EncodeRow(w)
	assert.Equal(t, int64(5), row["id"])
	assert.Equal(t, false, row[ColumnIsActive])
	assert.Equal(t, true, row[ColumnIsDeleted])
	assert.NotContains(t, row, ColumnLifecycle)
	assert.NotContains(t, row, "Owner")
	assert.Equal(t, 3, row["quantity"])

	assert.Nil(t, EncodeRow((*widget)(nil)))
	assert.Nil(t, EncodeRow(42))
}

func TestDecodeRow_RoundTrip(t *testing.T) {
	owner := int64(9)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	src := &widget{Name: "nut", Price: decimal.RequireFromString("1.25"), Quantity: 7, OwnerID: &owner}
	src.ID = 3
	src.Version = 2
	src.CreatedAt = at
	src.CreatedBy = "alice"
	src.Touch(at, "bob")
	src.Deactivate()

	var dst widget
	require.NoError(t, DecodeRow(EncodeRow(src), &dst))

	assert.Equal(t, src.Base.ID, dst.ID)
	assert.Equal(t, entity.Inactive, dst.Lifecycle)
	assert.Equal(t, "nut", dst.Name)
	assert.True(t, src.Price.Equal(dst.Price))
	assert.Equal(t, 7, dst.Quantity)
	require.NotNil(t, dst.OwnerID)
	assert.Equal(t, owner, *dst.OwnerID)
	assert.Equal(t, "bob", *dst.UpdatedBy)

	// pointers are copied, not shared
	assert.NotSame(t, src.OwnerID, dst.OwnerID)
	assert.NotSame(t, src.UpdatedAt, dst.UpdatedAt)
}

func TestDecodeRow_Conversions(t *testing.T) {
	var dst widget
	err := DecodeRow(map[string]any{
		"id":         int32(4),
		"quantity":   int64(11),
		"owner_id":   int64(2),
		"updated_at": nil,
		"lifecycle":  "inactive",
	}, &dst)
	require.NoError(t, err)
	assert.Equal(t, int64(4), dst.ID)
	assert.Equal(t, 11, dst.Quantity)
	assert.Equal(t, int64(2), *dst.OwnerID)
	assert.Nil(t, dst.UpdatedAt)
	assert.Equal(t, entity.Inactive, dst.Lifecycle)
}

func TestDecodeRow_Errors(t *testing.T) {
	var dst widget
	assert.Error(t, DecodeRow(map[string]any{}, dst))
	assert.Error(t, DecodeRow(map[string]any{}, new(int)))
	assert.Error(t, DecodeRow(map[string]any{"quantity": "many"}, &dst))
}

func TestQuery_Immutable(t *testing.T) {
	base := From("products", "id", "name")
	q := base.Where(spec.Eq("is_deleted", false)).Include("Category").Include("Category").
		OrderBy(spec.Asc("name")).Skip(10).Take(5)

	assert.Nil(t, base.Criteria)
	assert.Empty(t, base.Orders)
	assert.Equal(t, []string{"Category"}, q.Includes)
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, 5, q.Limit)

	count := q.Unpaged()
	assert.Empty(t, count.Orders)
	assert.Zero(t, count.Offset)
	assert.Zero(t, count.Limit)
	assert.NotNil(t, count.Criteria)

	assert.True(t, q.ForUpdate().Lock)
	assert.False(t, q.Lock)
}

func TestConstraintError(t *testing.T) {
	driver := errors.New("duplicate key value")
	err := fmt.Errorf("insert: %w", &ConstraintError{
		Kind: ErrUniqueViolation, Table: "categories", Constraint: "ux_categories_name", Err: driver,
	})

	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NotErrorIs(t, err, ErrForeignKey)
	assert.ErrorIs(t, err, driver)

	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ux_categories_name", ce.Constraint)
}
