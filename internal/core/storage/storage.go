// Package storage defines the store-agnostic contracts the repository layer
// talks to: a Query built from specifications, a Session executing it, and a
// Store handing out sessions and transactions.
package storage

import (
	"context"
)

// Session executes queries and commands against one logical connection.
// Implementations return errors wrapping the sentinels in errors.go for
// constraint violations and timeouts.
type Session interface {
	// Select loads rows matching q into dest, a pointer to a slice of struct pointers.
	Select(ctx context.Context, dest any, q Query) error

	// Count returns the number of rows matching q, ignoring ordering and paging.
	Count(ctx context.Context, q Query) (int64, error)

	// Insert stores row and returns the generated id.
	Insert(ctx context.Context, table string, row map[string]any) (int64, error)

	// InsertMany stores rows in one round trip and returns their ids in order.
	InsertMany(ctx context.Context, table string, rows []map[string]any) ([]int64, error)

	// Update writes row to the record with id when its version equals
	// expectedVersion, incrementing the version. It returns the number of
	// affected rows: 0 means the record is missing or was changed concurrently.
	Update(ctx context.Context, table string, id int64, expectedVersion int, row map[string]any) (int64, error)

	// InTransaction reports whether the session runs inside a transaction.
	InTransaction() bool
}

// Tx is a transactional session.
type Tx interface {
	Session
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store hands out sessions and transactions.
type Store interface {
	// Session returns a non-transactional session.
	Session() Session

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close()
}
