package result

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/apperror"
)

func TestVariants(t *testing.T) {
	s := Success(42, "created")
	assert.True(t, s.IsSuccess())
	assert.Equal(t, 42, s.Value())
	assert.Equal(t, "created", s.Message())
	assert.NoError(t, s.Err())

	tests := []struct {
		name string
		r    Result[int]
		kind Kind
	}{
		{"not found", NotFound[int]("Product 3"), KindNotFound},
		{"validation", ValidationError[int]("bad", "a", "b"), KindValidation},
		{"conflict", Conflict[int]("dup"), KindConflict},
		{"failure", Failure[int]("boom"), KindFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.r.IsSuccess())
			assert.Equal(t, tt.kind, tt.r.Kind())
			assert.Zero(t, tt.r.Value())
			assert.Error(t, tt.r.Err())
		})
	}

	assert.Equal(t, "Product 3 not found", NotFound[int]("Product 3").Message())
	assert.Equal(t, []string{"a", "b"}, ValidationError[int]("bad", "a", "b").Errors())
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"not found", apperror.NewNotFound("Product", 1), KindNotFound},
		{"validation", apperror.NewValidation("x").WithErrors("y"), KindValidation},
		{"duplicate", apperror.NewDuplicate("Category", "name", "Electronics"), KindConflict},
		{"conflict", apperror.NewConflict("x"), KindConflict},
		{"concurrent modification", apperror.NewConcurrentModification("Product", 1), KindFailure},
		{"cancelled", fmt.Errorf("query: %w", context.Canceled), KindFailure},
		{"deadline", context.DeadlineExceeded, KindFailure},
		{"raw", errors.New("socket closed"), KindFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromError[string](tt.err)
			assert.Equal(t, tt.kind, r.Kind())
			assert.ErrorIs(t, r.Err(), tt.err)
		})
	}

	// raw errors never leak their text
	assert.Equal(t, "Internal server error", FromError[int](errors.New("password=secret")).Message())
	assert.Equal(t, "Operation timed out", FromError[int](context.DeadlineExceeded).Message())
	assert.True(t, FromError[int](nil).IsSuccess())
}

func TestErrRoundTripsThroughFromError(t *testing.T) {
	r := ValidationError[int]("invalid", "name is required")
	back := FromError[string](r.Err())
	assert.Equal(t, KindValidation, back.Kind())
	assert.Equal(t, []string{"name is required"}, back.Errors())

	nf := FromError[int](NotFound[int]("Category 9").Err())
	assert.Equal(t, KindNotFound, nf.Kind())
}

func TestMapAndPropagate(t *testing.T) {
	doubled := Map(Success(21), func(v int) int { return v * 2 })
	require.True(t, doubled.IsSuccess())
	assert.Equal(t, 42, doubled.Value())

	failed := Map(Conflict[int]("dup"), func(v int) string { return "never" })
	assert.Equal(t, KindConflict, failed.Kind())
	assert.Equal(t, "dup", failed.Message())
}

func TestPagedList(t *testing.T) {
	p := PagedList[int]{Items: []int{1, 2}, TotalCount: 5, Page: 2, PageSize: 2}
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasPrevious())
	assert.True(t, p.HasNext())

	last := PagedList[int]{TotalCount: 5, Page: 3, PageSize: 2}
	assert.False(t, last.HasNext())

	empty := PagedList[int]{Page: 1, PageSize: 10}
	assert.Equal(t, 0, empty.TotalPages())
	assert.False(t, empty.HasNext())
	assert.False(t, empty.HasPrevious())
}
