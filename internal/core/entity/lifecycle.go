package entity

import (
	"database/sql/driver"
	"fmt"
)

// Lifecycle is the visibility state of a record.
// It is persisted as the is_active / is_deleted column pair.
type Lifecycle uint8

const (
	// Active rows are visible in default listings.
	Active Lifecycle = iota
	// Inactive rows stay visible but are switched off.
	Inactive
	// Deleted rows are soft-deleted; they are never active.
	Deleted
)

var lifecycleNames = [...]string{
	Active:   "active",
	Inactive: "inactive",
	Deleted:  "deleted",
}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("lifecycle(%d)", uint8(l))
}

// ParseLifecycle parses the textual form produced by String.
func ParseLifecycle(s string) (Lifecycle, error) {
	for i, name := range lifecycleNames {
		if name == s {
			return Lifecycle(i), nil
		}
	}
	return Active, fmt.Errorf("unknown lifecycle %q", s)
}

// LifecycleFromFlags converts the persisted column pair. Deleted wins over active.
func LifecycleFromFlags(isActive, isDeleted bool) Lifecycle {
	switch {
	case isDeleted:
		return Deleted
	case isActive:
		return Active
	default:
		return Inactive
	}
}

// Flags returns the persisted column pair.
func (l Lifecycle) Flags() (isActive, isDeleted bool) {
	return l == Active, l == Deleted
}

// Scan implements sql.Scanner.
func (l *Lifecycle) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseLifecycle(v)
		if err != nil {
			return err
		}
		*l = parsed
	case []byte:
		return l.Scan(string(v))
	case int64:
		if v < 0 || v >= int64(len(lifecycleNames)) {
			return fmt.Errorf("lifecycle out of range: %d", v)
		}
		*l = Lifecycle(v)
	case nil:
		*l = Active
	default:
		return fmt.Errorf("cannot scan %T into Lifecycle", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (l Lifecycle) Value() (driver.Value, error) {
	return l.String(), nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifecycle) UnmarshalText(b []byte) error {
	parsed, err := ParseLifecycle(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
