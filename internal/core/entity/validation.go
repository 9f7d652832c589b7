package entity

import (
	"fmt"

	"stockroom/internal/core/apperror"
)

// Violations collects field errors during Validate.
type Violations struct {
	fields []string
	msgs   []string
}

// Add records a violation for field.
func (v *Violations) Add(field, format string, args ...any) {
	v.fields = append(v.fields, field)
	v.msgs = append(v.msgs, fmt.Sprintf(format, args...))
}

// Check records a violation when cond is false.
func (v *Violations) Check(cond bool, field, format string, args ...any) {
	if !cond {
		v.Add(field, format, args...)
	}
}

// Err returns nil when nothing was recorded, otherwise a validation AppError.
func (v *Violations) Err(entity string) error {
	if len(v.msgs) == 0 {
		return nil
	}
	return apperror.NewValidation(fmt.Sprintf("%s is invalid", entity)).
		WithDetail("fields", v.fields).
		WithErrors(v.msgs...)
}
