// Package context carries request-scoped values: the acting user and trace ids.
package context

import (
	"context"
)

// SystemActor is stamped into audit fields when no user is attached to the context.
const SystemActor = "system"

// UserContext describes who performs the current operation.
type UserContext struct {
	UserID string
	Name   string
	Roles  []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// Actor returns the identity written to CreatedBy/UpdatedBy.
func Actor(ctx context.Context) string {
	if id := GetUserID(ctx); id != "" {
		return id
	}
	return SystemActor
}
