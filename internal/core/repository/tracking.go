package repository

import (
	"context"
	"fmt"
	"reflect"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/storage"
)

// Tracker receives entities loaded with TrackingEnabled.
type Tracker interface {
	Track(t *Tracked)
}

// Tracked is an entity registered for change detection.
type Tracked struct {
	Key    string
	Entity any

	snapshot   map[string]any
	encode     func() map[string]any
	save       func(ctx context.Context) error
	onRollback func(fn func())
}

// Dirty reports whether the entity changed since it was loaded or last saved.
func (t *Tracked) Dirty() bool {
	return !reflect.DeepEqual(t.encode(), t.snapshot)
}

// Save writes the entity back and refreshes the snapshot. A rollback of the
// enclosing transaction puts the old snapshot back, so the entity stays dirty.
func (t *Tracked) Save(ctx context.Context) error {
	if err := t.save(ctx); err != nil {
		return err
	}
	prev := t.snapshot
	t.snapshot = t.encode()
	t.onRollback(func() { t.snapshot = prev })
	return nil
}

func (r *Repository[T]) track(items []T) {
	if r.deps.Tracker == nil {
		return
	}
	for _, e := range items {
		r.deps.Tracker.Track(&Tracked{
			Key:      fmt.Sprintf("%s:%d", r.cfg.Table, e.Meta().ID),
			Entity:   e,
			snapshot: storage.EncodeRow(e),
			encode:   func() map[string]any { return storage.EncodeRow(e) },
			save: func(ctx context.Context) error {
				return r.Update(ctx, e).Err()
			},
			onRollback: r.onRollback,
		})
	}
}

// syncMeta copies the persisted base fields back onto the caller's instance.
func syncMeta(dst, src entity.Record) {
	*dst.Meta() = *src.Meta()
}
