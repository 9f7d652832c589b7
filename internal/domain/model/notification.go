package model

import (
	"context"
	"strings"
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/spec"
)

// NotificationKind classifies a notification.
type NotificationKind string

const (
	KindLowStock   NotificationKind = "low_stock"
	KindOutOfStock NotificationKind = "out_of_stock"
	KindInfo       NotificationKind = "info"
)

// Notification is a message for inventory operators.
type Notification struct {
	entity.Base

	ProductID *int64           `db:"product_id" json:"productId,omitempty"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Message   string           `db:"message" json:"message"`
	ReadAt    *time.Time       `db:"read_at" json:"readAt,omitempty"`
}

// Validate implements entity.Validatable.
func (n *Notification) Validate(ctx context.Context) error {
	var v entity.Violations
	v.Check(n.Kind != "", "kind", "kind is required")
	v.Check(strings.TrimSpace(n.Message) != "", "message", "message is required")
	return v.Err("Notification")
}

// IsRead reports whether the notification was acknowledged.
func (n *Notification) IsRead() bool { return n.ReadAt != nil }

// MarkRead acknowledges the notification once.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.ReadAt != nil {
		return false
	}
	at = at.UTC()
	n.ReadAt = &at
	return true
}

// NotificationConfig is the repository configuration for notifications.
func NotificationConfig() repository.Config[*Notification] {
	return repository.Config[*Notification]{
		Table:        TableNotifications,
		EntityName:   "Notification",
		New:          func() *Notification { return &Notification{} },
		DefaultOrder: []spec.Order{spec.Desc("created_at"), spec.Desc("id")},
	}
}

// Unread selects notifications not yet acknowledged.
func Unread() spec.Criteria {
	return spec.IsNull("read_at")
}
