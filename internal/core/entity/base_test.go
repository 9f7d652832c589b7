package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/apperror"
)

func TestLifecycle_DeletedIsNeverActive(t *testing.T) {
	var b Base
	assert.True(t, b.IsActive())

	assert.True(t, b.MarkDeleted())
	assert.False(t, b.IsActive())
	assert.True(t, b.IsDeleted())

	// only Restore leaves Deleted
	assert.False(t, b.Activate())
	assert.False(t, b.Deactivate())
	assert.True(t, b.IsDeleted())

	assert.True(t, b.Restore())
	assert.True(t, b.IsActive())
	assert.False(t, b.IsDeleted())
}

func TestLifecycle_Flags(t *testing.T) {
	tests := []struct {
		l                   Lifecycle
		isActive, isDeleted bool
	}{
		{Active, true, false},
		{Inactive, false, false},
		{Deleted, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.l.String(), func(t *testing.T) {
			a, d := tt.l.Flags()
			assert.Equal(t, tt.isActive, a)
			assert.Equal(t, tt.isDeleted, d)
			assert.Equal(t, tt.l, LifecycleFromFlags(a, d))
		})
	}

	// a corrupt row with both flags set reads as deleted
	assert.Equal(t, Deleted, LifecycleFromFlags(true, true))
}

func TestLifecycle_Scan(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.Scan("inactive"))
	assert.Equal(t, Inactive, l)
	require.NoError(t, l.Scan([]byte("deleted")))
	assert.Equal(t, Deleted, l)
	require.NoError(t, l.Scan(int64(0)))
	assert.Equal(t, Active, l)
	assert.Error(t, l.Scan("archived"))
	assert.Error(t, l.Scan(3.5))
}

func TestStampCreated_WriteOnce(t *testing.T) {
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := first.Add(time.Hour)

	var b Base
	b.StampCreated(first, "alice")
	b.StampCreated(later, "bob")
	assert.Equal(t, first, b.CreatedAt)
	assert.Equal(t, "alice", b.CreatedBy)

	persisted := Base{ID: 7}
	persisted.StampCreated(first, "alice")
	assert.True(t, persisted.CreatedAt.IsZero())
	assert.Empty(t, persisted.CreatedBy)
}

func TestTouch(t *testing.T) {
	var b Base
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	b.Touch(at, "carol")
	require.NotNil(t, b.UpdatedAt)
	require.NotNil(t, b.UpdatedBy)
	assert.Equal(t, at, *b.UpdatedAt)
	assert.Equal(t, "carol", *b.UpdatedBy)
}

func TestViolations(t *testing.T) {
	var v Violations
	assert.NoError(t, v.Err("Product"))

	v.Check(false, "sku", "sku is required")
	v.Check(true, "name", "never recorded")
	v.Add("quantity", "quantity must be >= 0, got %d", -1)

	err := v.Err("Product")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, []string{"sku is required", "quantity must be >= 0, got -1"}, appErr.Errors)
}
