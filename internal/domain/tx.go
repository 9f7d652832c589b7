package domain

import (
	"context"
	"reflect"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/result"
	"stockroom/internal/core/tx"
)

// InTransaction runs fn in a transaction and returns its result. A non-success
// result rolls the transaction back; a failed begin or commit becomes a Failure.
func InTransaction[V any](ctx context.Context, txm tx.Manager, fn func(ctx context.Context) result.Result[V]) result.Result[V] {
	var (
		res result.Result[V]
		ran bool
	)
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		res, ran = fn(ctx), true
		return res.Err()
	})
	if err != nil && (!ran || res.IsSuccess()) {
		return result.FromError[V](err)
	}
	return res
}

func notFound(entity string, id int64) error {
	return apperror.NewNotFound(entity, id)
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}
