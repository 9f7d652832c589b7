package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUniqueViolation is returned when a write breaks a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKey is returned when a write breaks a foreign key.
	ErrForeignKey = errors.New("foreign key violation")

	// ErrTimeout is returned when the store cancels a statement for running too long.
	ErrTimeout = errors.New("statement timeout")

	// ErrTxDone is returned when a finished transaction is used.
	ErrTxDone = errors.New("transaction already finished")
)

// ConstraintError names the violated constraint.
type ConstraintError struct {
	Kind       error // ErrUniqueViolation or ErrForeignKey
	Table      string
	Constraint string
	Columns    []string
	Err        error // driver error, optional
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s on %s", e.Kind, e.Constraint, e.Table)
}

// Is matches the constraint kind.
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the driver error.
func (e *ConstraintError) Unwrap() error {
	return e.Err
}
