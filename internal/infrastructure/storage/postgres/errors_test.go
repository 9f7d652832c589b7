package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/storage"
)

func TestMapError(t *testing.T) {
	t.Run("unique violation", func(t *testing.T) {
		pgErr := &pgconn.PgError{
			Code:           "23505",
			TableName:      "products",
			ConstraintName: "uq_products_sku",
			Detail:         "Key (sku)=(A-1) already exists.",
		}
		err := mapError(fmt.Errorf("insert: %w", pgErr))

		assert.ErrorIs(t, err, storage.ErrUniqueViolation)
		var ce *storage.ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "products", ce.Table)
		assert.Equal(t, []string{"sku"}, ce.Columns)
	})

	t.Run("foreign key", func(t *testing.T) {
		err := mapError(&pgconn.PgError{Code: "23503", Detail: "Key (category_id, supplier_id)=(9, 1) is not present."})
		assert.ErrorIs(t, err, storage.ErrForeignKey)
		var ce *storage.ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, []string{"category_id", "supplier_id"}, ce.Columns)
	})

	t.Run("statement timeout", func(t *testing.T) {
		err := mapError(&pgconn.PgError{Code: "57014"})
		assert.ErrorIs(t, err, storage.ErrTimeout)
	})

	t.Run("closed transaction", func(t *testing.T) {
		assert.ErrorIs(t, mapError(pgx.ErrTxClosed), storage.ErrTxDone)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		assert.Same(t, boom, mapError(boom))
		assert.NoError(t, mapError(nil))
	})
}
