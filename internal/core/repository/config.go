package repository

import (
	"context"
	"reflect"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
)

// Loader resolves one include path for a batch of loaded entities.
type Loader[T entity.Record] func(ctx context.Context, s storage.Session, items []T) error

// UniqueRule rejects writes that would duplicate Field among non-deleted rows.
type UniqueRule[T entity.Record] struct {
	Field string
	// Value extracts the value to check; nil or "" skips the rule.
	Value func(T) any
}

// Config describes how one entity type is persisted.
type Config[T entity.Record] struct {
	// Table is the backing table name.
	Table string

	// EntityName is used in cache keys, messages, logs and metrics.
	// Defaults to the struct type name.
	EntityName string

	// New allocates an empty entity.
	New func() T

	// Columns defaults to the db-tagged fields of the entity.
	Columns []string

	// DefaultIncludes are loaded by GetByID, GetAll and Find.
	DefaultIncludes []string

	// Includes maps include paths to their loaders.
	Includes map[string]Loader[T]

	// Unique lists uniqueness rules checked before inserts and updates.
	Unique []UniqueRule[T]

	// DefaultOrder applies when a query has no ordering. Defaults to id ascending.
	DefaultOrder []spec.Order
}

func (c Config[T]) normalized() Config[T] {
	if c.New == nil {
		panic("repository: Config.New is required")
	}
	if c.Table == "" {
		panic("repository: Config.Table is required")
	}
	sample := c.New()
	if c.EntityName == "" {
		t := reflect.TypeOf(sample)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		c.EntityName = t.Name()
	}
	if len(c.Columns) == 0 {
		c.Columns = storage.ColumnsOf(sample)
	}
	if len(c.DefaultOrder) == 0 {
		c.DefaultOrder = []spec.Order{spec.Asc(storage.ColumnID)}
	}
	return c
}
