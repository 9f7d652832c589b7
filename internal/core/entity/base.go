package entity

import (
	"context"
	"time"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Record is satisfied by pointers to every persisted type (types embedding Base).
type Record interface {
	Meta() *Base
}

// Base contains identity, lifecycle and audit fields common to all persisted types.
type Base struct {
	// ID is the surrogate key assigned by the store on insert
	ID int64 `db:"id" json:"id"`

	// Lifecycle replaces the is_active / is_deleted pair
	Lifecycle Lifecycle `db:"lifecycle" json:"lifecycle"`

	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	CreatedBy string     `db:"created_by" json:"createdBy"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updatedBy,omitempty"`

	// Version for optimistic locking (incremented by the store on each update)
	Version int `db:"version" json:"version"`
}

// Meta returns the embedded Base. Promoted to every type embedding Base.
func (b *Base) Meta() *Base {
	return b
}

// IsNew reports whether the record has not been persisted yet.
func (b *Base) IsNew() bool {
	return b.ID == 0
}

// IsActive reports whether the record is visible in default listings.
func (b *Base) IsActive() bool {
	return b.Lifecycle == Active
}

// IsDeleted reports whether the record is soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.Lifecycle == Deleted
}

// StampCreated sets creation audit fields. Write-once: ignored for persisted
// records and for fields that are already set.
func (b *Base) StampCreated(at time.Time, by string) {
	if !b.IsNew() {
		return
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = at.UTC()
	}
	if b.CreatedBy == "" {
		b.CreatedBy = by
	}
}

// Touch stamps the update audit fields.
func (b *Base) Touch(at time.Time, by string) {
	at = at.UTC()
	b.UpdatedAt = &at
	b.UpdatedBy = &by
}

// Activate makes an inactive record active. Deleted records stay deleted.
func (b *Base) Activate() bool {
	if b.Lifecycle != Inactive {
		return false
	}
	b.Lifecycle = Active
	return true
}

// Deactivate switches an active record off. Deleted records stay deleted.
func (b *Base) Deactivate() bool {
	if b.Lifecycle != Active {
		return false
	}
	b.Lifecycle = Inactive
	return true
}

// MarkDeleted soft-deletes the record.
func (b *Base) MarkDeleted() bool {
	if b.Lifecycle == Deleted {
		return false
	}
	b.Lifecycle = Deleted
	return true
}

// Restore brings a soft-deleted record back as active.
func (b *Base) Restore() bool {
	if b.Lifecycle != Deleted {
		return false
	}
	b.Lifecycle = Active
	return true
}
