// Package uow implements the unit of work: one session shared by lazily
// created repositories, an explicit transaction state machine and change
// tracking flushed by SaveChanges.
//
// A UnitOfWork serves one logical request and is not safe for use by
// concurrent callers.
package uow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/cache"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/storage"
	"stockroom/internal/core/tx"
	"stockroom/pkg/logger"
)

var (
	_ tx.Manager                = (*UnitOfWork)(nil)
	_ repository.Tracker        = (*UnitOfWork)(nil)
	_ repository.AfterCommitter = (*UnitOfWork)(nil)
	_ repository.RollbackHooker = (*UnitOfWork)(nil)
)

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithCache makes repositories cache-aware. An empty prefix uses cache.DefaultPrefix.
func WithCache(svc cache.Service, prefix string) Option {
	return func(u *UnitOfWork) {
		u.cache = svc
		u.cachePrefix = prefix
	}
}

// WithMetrics records repository outcomes.
func WithMetrics(rec repository.Recorder) Option {
	return func(u *UnitOfWork) { u.metrics = rec }
}

// WithClock overrides the audit clock.
func WithClock(clock func() time.Time) Option {
	return func(u *UnitOfWork) { u.clock = clock }
}

// WithCommandTimeout sets the default per-operation timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(u *UnitOfWork) { u.commandTimeout = d }
}

// UnitOfWork coordinates repositories over one store session.
type UnitOfWork struct {
	store          storage.Store
	cache          cache.Service
	cachePrefix    string
	metrics        repository.Recorder
	clock          func() time.Time
	commandTimeout time.Duration

	mu          sync.Mutex
	state       tx.State
	tx          storage.Tx
	repos       map[string]any
	tracked     map[string]*repository.Tracked
	trackOrder  []string
	afterCommit []func(ctx context.Context)
	onRollback  []func()
}

// New creates a unit of work over store.
func New(store storage.Store, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		store:   store,
		repos:   make(map[string]any),
		tracked: make(map[string]*repository.Tracked),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Repo returns the repository for cfg.Table, creating it on first use.
// Every repository of the unit shares its session.
func Repo[T entity.Record](u *UnitOfWork, cfg repository.Config[T]) *repository.Repository[T] {
	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.repos[cfg.Table]; ok {
		if r, ok := existing.(*repository.Repository[T]); ok {
			return r
		}
		panic(fmt.Sprintf("uow: table %q already bound to %T", cfg.Table, existing))
	}

	r := repository.New(cfg, repository.Deps{
		Sessions:       u,
		Cache:          u.cache,
		CachePrefix:    u.cachePrefix,
		Tracker:        u,
		Metrics:        u.metrics,
		Clock:          u.clock,
		CommandTimeout: u.commandTimeout,
	})
	u.repos[cfg.Table] = r
	return r
}

// Session returns the open transaction, or a plain store session.
func (u *UnitOfWork) Session() storage.Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.Open() {
		return u.tx
	}
	return u.store.Session()
}

// State reports the transaction state.
func (u *UnitOfWork) State() tx.State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// InTransaction reports whether a transaction is open.
func (u *UnitOfWork) InTransaction() bool {
	return u.State().Open()
}

// BeginTransaction opens a transaction. It fails when one is already open.
func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state.Open() {
		return apperror.NewTransactionState("a transaction is already in progress")
	}
	t, err := u.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	u.tx = t
	u.state = tx.InTransaction
	return nil
}

// Commit commits the open transaction and runs the after-commit callbacks.
// Without an open transaction it does nothing.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	if !u.state.Open() {
		u.mu.Unlock()
		return nil
	}
	t, callbacks, undo := u.tx, u.afterCommit, u.onRollback
	u.tx, u.afterCommit, u.onRollback = nil, nil, nil

	if err := t.Commit(ctx); err != nil {
		// A failed commit leaves nothing to roll back.
		u.state = tx.RolledBack
		u.mu.Unlock()
		runUndo(undo)
		return fmt.Errorf("commit transaction: %w", err)
	}
	u.state = tx.Committed
	u.mu.Unlock()

	for _, fn := range callbacks {
		fn(ctx)
	}
	return nil
}

// Rollback discards the open transaction. Without one it does nothing.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	if !u.state.Open() {
		u.mu.Unlock()
		return nil
	}
	t, undo := u.tx, u.onRollback
	u.tx, u.afterCommit, u.onRollback = nil, nil, nil
	u.state = tx.RolledBack
	u.mu.Unlock()

	runUndo(undo)
	if err := t.Rollback(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// OnRollback registers fn to undo an in-memory change if the open transaction
// rolls back. It reports false when no transaction is open.
func (u *UnitOfWork) OnRollback(fn func()) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.state.Open() {
		return false
	}
	u.onRollback = append(u.onRollback, fn)
	return true
}

// runUndo applies undo functions newest first.
func runUndo(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// AfterCommit defers fn until the open transaction commits. It reports false
// when no transaction is open; fn is then not registered.
func (u *UnitOfWork) AfterCommit(fn func(ctx context.Context)) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.state.Open() {
		return false
	}
	u.afterCommit = append(u.afterCommit, fn)
	return true
}

// RunInTransaction runs fn in a transaction, rolling back when fn fails or
// panics. When a transaction is already open fn joins it.
func (u *UnitOfWork) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if u.InTransaction() {
		return fn(ctx)
	}
	if err := u.BeginTransaction(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := u.Rollback(ctx); rbErr != nil {
				logger.Error(ctx, "rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := u.Rollback(ctx); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}
	return u.Commit(ctx)
}

// Track registers a loaded entity. Loading the same row again replaces the
// earlier registration.
func (u *UnitOfWork) Track(t *repository.Tracked) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.tracked[t.Key]; !ok {
		u.trackOrder = append(u.trackOrder, t.Key)
	}
	u.tracked[t.Key] = t
}

// SaveChanges writes back every tracked entity modified since it was loaded
// and returns how many were written. Writes run in the open transaction, or
// in one of their own.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int, error) {
	u.mu.Lock()
	dirty := make([]*repository.Tracked, 0, len(u.trackOrder))
	for _, key := range u.trackOrder {
		if t := u.tracked[key]; t.Dirty() {
			dirty = append(dirty, t)
		}
	}
	u.mu.Unlock()

	if len(dirty) == 0 {
		return 0, nil
	}

	saved := 0
	err := u.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, t := range dirty {
			if err := t.Save(ctx); err != nil {
				return fmt.Errorf("save %s: %w", t.Key, err)
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Debug(ctx, "changes saved", "count", saved)
	return saved, nil
}

// Close rolls back a transaction left open and forgets tracked entities.
func (u *UnitOfWork) Close(ctx context.Context) error {
	err := u.Rollback(ctx)
	u.mu.Lock()
	u.tracked = make(map[string]*repository.Tracked)
	u.trackOrder = nil
	u.mu.Unlock()
	return err
}
