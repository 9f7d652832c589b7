package memory

import (
	"context"
	"sync"

	"stockroom/internal/core/storage"
)

type transaction struct {
	session

	once sync.Once
	done bool
}

var _ storage.Tx = (*transaction)(nil)

func (t *transaction) finish(commit bool) bool {
	finished := false
	t.once.Do(func() {
		if commit {
			t.store.mu.Lock()
			t.store.tables = t.tables
			t.store.mu.Unlock()
		}
		t.tables = nil
		t.done = true
		t.store.release()
		finished = true
	})
	return finished
}

// Commit publishes the transaction's tables.
func (t *transaction) Commit(ctx context.Context) error {
	if !t.finish(true) {
		return storage.ErrTxDone
	}
	return nil
}

// Rollback discards the transaction's tables.
func (t *transaction) Rollback(ctx context.Context) error {
	if !t.finish(false) {
		return storage.ErrTxDone
	}
	return nil
}

func (t *transaction) guard(ctx context.Context) error {
	if t.done {
		return storage.ErrTxDone
	}
	return ctx.Err()
}

func (t *transaction) Select(ctx context.Context, dest any, q storage.Query) error {
	if err := t.guard(ctx); err != nil {
		return err
	}
	return t.session.Select(ctx, dest, q)
}

func (t *transaction) Count(ctx context.Context, q storage.Query) (int64, error) {
	if err := t.guard(ctx); err != nil {
		return 0, err
	}
	return t.session.Count(ctx, q)
}

func (t *transaction) Insert(ctx context.Context, table string, row map[string]any) (int64, error) {
	if err := t.guard(ctx); err != nil {
		return 0, err
	}
	return t.session.Insert(ctx, table, row)
}

func (t *transaction) InsertMany(ctx context.Context, table string, rows []map[string]any) ([]int64, error) {
	if err := t.guard(ctx); err != nil {
		return nil, err
	}
	return t.session.InsertMany(ctx, table, rows)
}

func (t *transaction) Update(ctx context.Context, table string, id int64, expectedVersion int, row map[string]any) (int64, error) {
	if err := t.guard(ctx); err != nil {
		return 0, err
	}
	return t.session.Update(ctx, table, id, expectedVersion, row)
}
