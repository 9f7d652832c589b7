package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockroom/internal/core/storage"
)

// PostgreSQL SQLSTATE codes mapped to storage errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeQueryCanceled       = "57014"
)

// mapError converts driver errors into the storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %w", storage.ErrTxDone, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &storage.ConstraintError{
			Kind:       storage.ErrUniqueViolation,
			Table:      pgErr.TableName,
			Constraint: pgErr.ConstraintName,
			Columns:    keyColumns(pgErr.Detail),
			Err:        err,
		}
	case codeForeignKeyViolation:
		return &storage.ConstraintError{
			Kind:       storage.ErrForeignKey,
			Table:      pgErr.TableName,
			Constraint: pgErr.ConstraintName,
			Columns:    keyColumns(pgErr.Detail),
			Err:        err,
		}
	case codeQueryCanceled:
		return fmt.Errorf("%w: %w", storage.ErrTimeout, err)
	}
	return err
}

// keyColumns extracts the column list from a detail such as
// "Key (sku)=(A-1) already exists.".
func keyColumns(detail string) []string {
	rest, ok := strings.CutPrefix(detail, "Key (")
	if !ok {
		return nil
	}
	cols, _, ok := strings.Cut(rest, ")=(")
	if !ok {
		return nil
	}
	out := strings.Split(cols, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}
