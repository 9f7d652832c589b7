// Package tx defines the transaction contract domain services depend on.
// The unit of work implements it; services never see the store.
package tx

import (
	"context"
)

// Manager runs a function inside a transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error or panics, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Calls made while a transaction is already open join it.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// State is the transaction state of a unit of work.
type State uint8

const (
	NoTransaction State = iota
	InTransaction
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case InTransaction:
		return "in_transaction"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "no_transaction"
	}
}

// Open reports whether a transaction is in progress.
func (s State) Open() bool { return s == InTransaction }
