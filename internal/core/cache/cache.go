// Package cache defines the process-wide cache contract used by repositories.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPrefix starts every entity key.
	DefaultPrefix = "entity:"

	// DefaultExpiration is the absolute lifetime of entries created without options.
	DefaultExpiration = 10 * time.Minute
)

// Factory produces a value on a cache miss. It may perform I/O.
type Factory func(ctx context.Context) (any, error)

// Service is a key/value cache with get-or-create semantics and prefix invalidation.
// Implementations are safe for concurrent use.
type Service interface {
	// GetOrCreate returns the cached value for key, or runs factory, stores
	// its result and returns it. Factory errors are returned and nothing is stored.
	GetOrCreate(ctx context.Context, key string, factory Factory, opts ...EntryOption) (any, error)

	// Remove deletes one entry. Missing keys are ignored.
	Remove(ctx context.Context, key string)

	// RemoveByPrefix deletes every entry whose key starts with prefix and
	// returns how many were removed.
	RemoveByPrefix(ctx context.Context, prefix string) int

	// Len returns the number of live entries.
	Len() int
}

// EntryOptions controls the lifetime of one entry.
type EntryOptions struct {
	Expiration time.Duration
	Sliding    bool
}

// EntryOption configures EntryOptions.
type EntryOption func(*EntryOptions)

// WithExpiration sets an absolute lifetime. Non-positive values keep the default.
func WithExpiration(d time.Duration) EntryOption {
	return func(o *EntryOptions) {
		if d > 0 {
			o.Expiration = d
			o.Sliding = false
		}
	}
}

// WithSliding sets a lifetime renewed on every hit.
func WithSliding(d time.Duration) EntryOption {
	return func(o *EntryOptions) {
		if d > 0 {
			o.Expiration = d
			o.Sliding = true
		}
	}
}

// ApplyOptions resolves opts over def.
func ApplyOptions(def time.Duration, opts ...EntryOption) EntryOptions {
	o := EntryOptions{Expiration: def}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Expiration <= 0 {
		o.Expiration = DefaultExpiration
	}
	return o
}

// EntityPrefix returns "{prefix}{entityType}:", the prefix of all keys of one entity type.
func EntityPrefix(prefix, entityType string) string {
	return prefix + entityType + ":"
}

// Key returns "{prefix}{entityType}:{suffix}".
func Key(prefix, entityType, suffix string) string {
	return EntityPrefix(prefix, entityType) + suffix
}

// KeyFor builds the key suffix from parts, e.g. KeyFor("id", 5) = "id=5".
func KeyFor(parts ...any) string {
	var b strings.Builder
	for i := 0; i+1 < len(parts); i += 2 {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%v=%v", parts[i], parts[i+1])
	}
	if len(parts)%2 == 1 {
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%v", parts[len(parts)-1])
	}
	return b.String()
}

// GetOrCreate is the typed form of Service.GetOrCreate. A cached value of
// another type is treated as a miss and replaced.
func GetOrCreate[V any](ctx context.Context, svc Service, key string, factory func(context.Context) (V, error), opts ...EntryOption) (V, error) {
	wrapped := func(ctx context.Context) (any, error) { return factory(ctx) }

	raw, err := svc.GetOrCreate(ctx, key, wrapped, opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := raw.(V); ok {
		return v, nil
	}

	svc.Remove(ctx, key)
	raw, err = svc.GetOrCreate(ctx, key, wrapped, opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	v, ok := raw.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: key %q holds %T", key, raw)
	}
	return v, nil
}

// Noop never stores anything: every GetOrCreate runs the factory.
type Noop struct{}

var _ Service = Noop{}

func (Noop) GetOrCreate(ctx context.Context, _ string, factory Factory, _ ...EntryOption) (any, error) {
	return factory(ctx)
}

func (Noop) Remove(context.Context, string) {}

func (Noop) RemoveByPrefix(context.Context, string) int { return 0 }

func (Noop) Len() int { return 0 }
