// Package cache provides the in-process cache Service backed by ttlcache,
// with an auxiliary key index for prefix invalidation.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/puzpuzpuz/xsync/v3"

	corecache "stockroom/internal/core/cache"
	"stockroom/pkg/logger"
)

// Recorder receives cache events. Implemented by the metrics package.
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheEviction(reason string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()            {}
func (nopRecorder) CacheMiss()           {}
func (nopRecorder) CacheEviction(string) {}

// Options configures a Service.
type Options struct {
	// DefaultExpiration applies when GetOrCreate gets no expiration option.
	DefaultExpiration time.Duration

	// Capacity bounds the number of entries; 0 means unbounded.
	Capacity uint64

	Metrics Recorder
}

type entry struct {
	value   any
	sliding bool
}

type item = *ttlcache.Item[string, entry]

// Service implements core cache.Service.
//
// The index maps every live key to its ttlcache item. Eviction callbacks run
// asynchronously, so they drop an index record only while it still points at
// the evicted item; a key re-created in the meantime stays indexed.
type Service struct {
	store             *ttlcache.Cache[string, entry]
	index             *xsync.MapOf[string, item]
	defaultExpiration time.Duration
	metrics           Recorder
	unsubscribe       func()

	// Lifecycle
	lifecycleMu sync.Mutex
	started     bool
	done        chan struct{}
}

var _ corecache.Service = (*Service)(nil)

// New creates a Service. Call Start to run the expiry loop.
func New(opts Options) *Service {
	if opts.DefaultExpiration <= 0 {
		opts.DefaultExpiration = corecache.DefaultExpiration
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}

	ttlOpts := []ttlcache.Option[string, entry]{
		ttlcache.WithTTL[string, entry](opts.DefaultExpiration),
		ttlcache.WithDisableTouchOnHit[string, entry](),
	}
	if opts.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[string, entry](opts.Capacity))
	}

	s := &Service{
		store:             ttlcache.New(ttlOpts...),
		index:             xsync.NewMapOf[string, item](),
		defaultExpiration: opts.DefaultExpiration,
		metrics:           opts.Metrics,
	}
	s.unsubscribe = s.store.OnEviction(s.onEviction)
	return s
}

// Start runs the expiry loop that evicts expired entries.
func (s *Service) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.store.Start()
	}()
	logger.Info(ctx, "cache started", "default_expiration", s.defaultExpiration.String())
}

// Stop ends the expiry loop and drops every entry.
func (s *Service) Stop(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		s.store.Stop()
		<-s.done
		s.started = false
	}

	s.unsubscribe()
	s.store.DeleteAll()
	s.index.Clear()
	s.unsubscribe = s.store.OnEviction(s.onEviction)
	logger.Info(ctx, "cache stopped")
}

// GetOrCreate implements cache.Service. Concurrent misses on the same key may
// each run the factory; the last write wins.
func (s *Service) GetOrCreate(ctx context.Context, key string, factory corecache.Factory, opts ...corecache.EntryOption) (any, error) {
	if it := s.store.Get(key); it != nil {
		e := it.Value()
		if e.sliding {
			s.store.Touch(key)
		}
		s.metrics.CacheHit()
		return e.value, nil
	}
	s.metrics.CacheMiss()

	value, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	o := corecache.ApplyOptions(s.defaultExpiration, opts...)
	it := s.store.Set(key, entry{value: value, sliding: o.Sliding}, o.Expiration)
	s.indexItem(key, it)
	return value, nil
}

// indexItem records it unless a Remove or a newer Set replaced it first.
func (s *Service) indexItem(key string, it item) {
	s.index.Compute(key, func(current item, loaded bool) (item, bool) {
		if s.store.Get(key, ttlcache.WithDisableTouchOnHit[string, entry]()) == it {
			return it, false
		}
		return current, !loaded
	})
}

// Remove implements cache.Service.
func (s *Service) Remove(_ context.Context, key string) {
	s.index.Delete(key)
	s.store.Delete(key)
}

// RemoveByPrefix implements cache.Service using the key index.
func (s *Service) RemoveByPrefix(ctx context.Context, prefix string) int {
	var keys []string
	s.index.Range(func(key string, _ item) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})

	for _, key := range keys {
		s.Remove(ctx, key)
	}
	if len(keys) > 0 {
		logger.Debug(ctx, "cache prefix invalidated", "prefix", prefix, "removed", len(keys))
	}
	return len(keys)
}

// Len implements cache.Service.
func (s *Service) Len() int {
	return s.store.Len()
}

// IndexSize returns the number of index records.
func (s *Service) IndexSize() int {
	return s.index.Size()
}

func (s *Service) onEviction(ctx context.Context, reason ttlcache.EvictionReason, evicted item) {
	key := evicted.Key()
	s.index.Compute(key, func(current item, loaded bool) (item, bool) {
		// keep records of items created after the evicted one
		return current, !loaded || current == evicted
	})

	if reason != ttlcache.EvictionReasonDeleted {
		s.metrics.CacheEviction(evictionReason(reason))
		logger.Debug(ctx, "cache entry evicted", "key", key, "reason", evictionReason(reason))
	}
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	default:
		return "other"
	}
}
