package repository

import (
	"context"
	"errors"
	"fmt"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/storage"
)

// translate maps store and context errors to AppErrors. Messages never carry driver text.
func (r *Repository[T]) translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var ce *storage.ConstraintError
	switch {
	case errors.Is(err, storage.ErrUniqueViolation):
		conflict := apperror.NewConflict(fmt.Sprintf("%s already exists", r.cfg.EntityName)).WithCause(err)
		if errors.As(err, &ce) && len(ce.Columns) > 0 {
			conflict = conflict.WithDetail("fields", ce.Columns)
		}
		return conflict
	case errors.Is(err, storage.ErrForeignKey):
		return apperror.NewConflict(fmt.Sprintf("%s references a row that does not exist", r.cfg.EntityName)).
			WithCause(err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return apperror.NewCancelled(err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, storage.ErrTimeout):
		return apperror.NewTimeout(err)
	}
	return apperror.NewDatabase(err)
}

func (r *Repository[T]) notFound(id int64) error {
	return apperror.NewNotFound(r.cfg.EntityName, id)
}
