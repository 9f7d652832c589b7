package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Wrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("load product: %w", NewDatabase(cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeDatabase, appErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
}

func TestAppError_Predicates(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		conflict bool
		conc     bool
	}{
		{"not found", NewNotFound("Product", 1), true, false, false},
		{"duplicate", NewDuplicate("Category", "name", "Electronics"), false, true, false},
		{"conflict", NewConflict("x"), false, true, false},
		{"concurrent", NewConcurrentModification("Product", 1), false, false, true},
		{"plain", errors.New("x"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.conc, IsConcurrentModification(tt.err))
		})
	}
}

func TestAppError_Builders(t *testing.T) {
	err := NewValidation("invalid product").
		WithDetail("field", "sku").
		WithErrors("sku is required", "name is required")

	assert.Equal(t, "sku", err.Details["field"])
	assert.Equal(t, []string{"sku is required", "name is required"}, err.Errors)
	assert.Equal(t, "VALIDATION_ERROR: invalid product", err.Error())

	dep := NewHasDependents("Category", int64(1), "products", 2)
	assert.Contains(t, dep.Message, "2 active products")
}
