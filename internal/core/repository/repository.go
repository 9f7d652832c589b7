// Package repository provides the generic Repository[T] used for every
// persisted entity type.
//
// Every operation returns a result.Result. Store and context errors are caught
// here, logged with the entity and operation, and converted: unique violations
// become Conflict, stale versions a concurrent-modification Failure, anything
// else a Failure with a generic message.
package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/cache"
	appctx "stockroom/internal/core/context"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
	"stockroom/pkg/logger"
)

// SessionProvider supplies the session a repository runs on. A Store
// satisfies it; a unit of work returns its open transaction when there is one.
type SessionProvider interface {
	Session() storage.Session
}

// AfterCommitter is implemented by session providers that can defer work until
// the open transaction commits. It reports false when no transaction is open.
type AfterCommitter interface {
	AfterCommit(fn func(ctx context.Context)) bool
}

// RollbackHooker is implemented by session providers that can undo in-memory
// changes when the open transaction rolls back. It reports false when no
// transaction is open.
type RollbackHooker interface {
	OnRollback(fn func()) bool
}

// Recorder receives per-operation outcomes. Implemented by the metrics package.
type Recorder interface {
	ObserveOperation(entity, operation, outcome string, elapsed time.Duration)
}

// Deps are the collaborators of a repository.
type Deps struct {
	Sessions SessionProvider

	// Cache is optional; without it the cache-aware reads query directly.
	Cache       cache.Service
	CachePrefix string

	Tracker Tracker
	Metrics Recorder

	// Clock stamps audit fields. Defaults to time.Now.
	Clock func() time.Time

	// CommandTimeout applies when QueryOptions carries none.
	CommandTimeout time.Duration
}

// Repository is the generic CRUD and query facade over one entity type.
// It is scoped to one logical request and not shared across goroutines,
// except for the concurrent include loading it performs itself.
type Repository[T entity.Record] struct {
	cfg     Config[T]
	deps    Deps
	allowed map[string]struct{}
	tracer  trace.Tracer
}

// New creates a repository for cfg.
func New[T entity.Record](cfg Config[T], deps Deps) *Repository[T] {
	cfg = cfg.normalized()
	if deps.Sessions == nil {
		panic("repository: Deps.Sessions is required")
	}
	if deps.CachePrefix == "" {
		deps.CachePrefix = cache.DefaultPrefix
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.CommandTimeout <= 0 {
		deps.CommandTimeout = DefaultCommandTimeout
	}

	allowed := make(map[string]struct{})
	for _, c := range storage.PersistedColumns(cfg.Columns) {
		allowed[c] = struct{}{}
	}

	return &Repository[T]{
		cfg:     cfg,
		deps:    deps,
		allowed: allowed,
		tracer:  otel.Tracer("stockroom/repository"),
	}
}

// EntityName returns the configured entity name.
func (r *Repository[T]) EntityName() string { return r.cfg.EntityName }

// Table returns the backing table.
func (r *Repository[T]) Table() string { return r.cfg.Table }

func (r *Repository[T]) session() storage.Session {
	return r.deps.Sessions.Session()
}

// observe runs one operation: it enforces cancellation and the command
// timeout, opens a span, converts the outcome to a Result, and logs and
// records it.
func observe[T entity.Record, V any](ctx context.Context, r *Repository[T], op string, timeout time.Duration, fn func(ctx context.Context) (V, error)) result.Result[V] {
	start := time.Now()
	if timeout <= 0 {
		timeout = r.deps.CommandTimeout
	}

	var (
		v   V
		err error
	)
	if cerr := ctx.Err(); cerr != nil {
		err = r.translate(ctx, cerr)
	} else {
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		var span trace.Span
		opCtx, span = r.tracer.Start(opCtx, r.cfg.EntityName+"."+op,
			trace.WithAttributes(attribute.String("entity", r.cfg.EntityName)))

		v, err = fn(opCtx)
		err = r.translate(opCtx, err)
		if err != nil && !expected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
	}

	res := result.FromError[V](err)
	if err == nil {
		res = result.Success(v)
	} else if expected(err) {
		logger.Debug(ctx, "repository operation rejected",
			"entity", r.cfg.EntityName, "operation", op, "outcome", res.Kind().String(), "error", err)
	} else {
		logger.Error(ctx, "repository operation failed",
			"entity", r.cfg.EntityName, "operation", op, "error", err)
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveOperation(r.cfg.EntityName, op, res.Kind().String(), time.Since(start))
	}
	return res
}

// expected reports outcomes a caller can trigger: not found, validation, conflicts.
func expected(err error) bool {
	switch {
	case apperror.HasCode(err, apperror.CodeNotFound),
		apperror.HasCode(err, apperror.CodeValidation),
		apperror.IsConflict(err),
		apperror.IsConcurrentModification(err),
		apperror.HasCode(err, apperror.CodeCancelled):
		return true
	}
	return false
}

// checkFields rejects criteria, ordering and include paths the entity does not know.
func (r *Repository[T]) checkFields(s spec.Specification[T]) error {
	var unknown []string
	if c := s.Criteria(); c != nil {
		for _, f := range c.Fields() {
			if _, ok := r.allowed[f]; !ok {
				unknown = append(unknown, fmt.Sprintf("unknown filter field %q", f))
			}
		}
	}
	for _, o := range s.Orders() {
		if _, ok := r.allowed[o.Field]; !ok {
			unknown = append(unknown, fmt.Sprintf("unknown order field %q", o.Field))
		}
	}
	for _, path := range s.Includes() {
		if _, ok := r.cfg.Includes[path]; !ok {
			unknown = append(unknown, fmt.Sprintf("unknown include %q", path))
		}
	}
	if len(unknown) > 0 {
		return apperror.NewValidation(fmt.Sprintf("invalid %s query", r.cfg.EntityName)).
			WithErrors(unknown...)
	}
	return nil
}

// baseQuery applies the soft-delete filter unless s opts into deleted rows.
func (r *Repository[T]) baseQuery(s spec.Specification[T]) storage.Query {
	q := storage.From(r.cfg.Table, r.cfg.Columns...)
	if !s.IncludesDeleted() {
		q = q.Where(spec.Eq(storage.ColumnIsDeleted, false))
	}
	return q
}

// list runs s and resolves includes. It is the single read path of the repository.
func (r *Repository[T]) list(ctx context.Context, s spec.Specification[T], opts QueryOptions) ([]T, error) {
	if err := r.checkFields(s); err != nil {
		return nil, err
	}

	q := spec.Evaluate(r.baseQuery(s), s)
	if len(q.Orders) == 0 {
		for _, o := range r.cfg.DefaultOrder {
			q = q.OrderBy(o)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess := r.session()
	items := make([]T, 0)
	if err := sess.Select(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.cfg.Table, err)
	}

	if len(items) > 0 && len(q.Includes) > 0 {
		if err := r.loadIncludes(ctx, sess, items, q.Includes, opts.SplitQuery); err != nil {
			return nil, err
		}
	}

	if opts.TrackingEnabled {
		r.track(items)
	}
	return items, nil
}

func (r *Repository[T]) loadIncludes(ctx context.Context, sess storage.Session, items []T, paths []string, split bool) error {
	if split && len(paths) > 1 && !sess.InTransaction() {
		g, gctx := errgroup.WithContext(ctx)
		for _, path := range paths {
			load := r.cfg.Includes[path]
			g.Go(func() error {
				if err := load(gctx, sess, items); err != nil {
					return fmt.Errorf("include %s: %w", path, err)
				}
				return nil
			})
		}
		return g.Wait()
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.cfg.Includes[path](ctx, sess, items); err != nil {
			return fmt.Errorf("include %s: %w", path, err)
		}
	}
	return nil
}

func (r *Repository[T]) count(ctx context.Context, s spec.Specification[T]) (int64, error) {
	if err := r.checkFields(spec.Where[T](s.Criteria())); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := r.baseQuery(s).Where(s.Criteria())
	n, err := r.session().Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// load returns the row with id, optionally including soft-deleted rows.
func (r *Repository[T]) load(ctx context.Context, id int64, includeDeleted bool) (T, error) {
	s := spec.Where[T](spec.Eq(storage.ColumnID, id)).Take(1)
	if includeDeleted {
		s = s.IncludeDeleted()
	}
	items, err := r.list(ctx, s, ReadOnly)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, r.notFound(id)
	}
	return items[0], nil
}

func (r *Repository[T]) defaults() spec.Specification[T] {
	return spec.New[T]().Include(r.cfg.DefaultIncludes...)
}

// GetByID returns the non-deleted entity with id. With track set, the entity
// is registered for SaveChanges.
func (r *Repository[T]) GetByID(ctx context.Context, id int64, track bool) result.Result[T] {
	opts := ReadOnly
	if track {
		opts = ForUpdate
	}
	return observe(ctx, r, "get_by_id", 0, func(ctx context.Context) (T, error) {
		items, err := r.list(ctx, r.defaults().Where(spec.Eq(storage.ColumnID, id)).Take(1), opts)
		if err != nil {
			var zero T
			return zero, err
		}
		if len(items) == 0 {
			var zero T
			return zero, r.notFound(id)
		}
		return items[0], nil
	})
}

// GetForUpdate loads the entity and locks its row until the open transaction
// ends. The entity is not tracked; write it back with Update.
func (r *Repository[T]) GetForUpdate(ctx context.Context, id int64) result.Result[T] {
	return observe(ctx, r, "get_for_update", 0, func(ctx context.Context) (T, error) {
		var zero T
		q := r.baseQuery(spec.New[T]()).Where(spec.Eq(storage.ColumnID, id)).Take(1).ForUpdate()
		items := make([]T, 0, 1)
		if err := r.session().Select(ctx, &items, q); err != nil {
			return zero, fmt.Errorf("select %s for update: %w", r.cfg.Table, err)
		}
		if len(items) == 0 {
			return zero, r.notFound(id)
		}
		return items[0], nil
	})
}

// GetAll returns every non-deleted entity. Empty is a Success.
func (r *Repository[T]) GetAll(ctx context.Context, opts QueryOptions) result.Result[[]T] {
	return observe(ctx, r, "get_all", opts.CommandTimeout, func(ctx context.Context) ([]T, error) {
		return r.list(ctx, r.defaults(), opts)
	})
}

// Find returns the non-deleted entities matching criteria.
func (r *Repository[T]) Find(ctx context.Context, criteria spec.Criteria, opts QueryOptions) result.Result[[]T] {
	return observe(ctx, r, "find", opts.CommandTimeout, func(ctx context.Context) ([]T, error) {
		return r.list(ctx, r.defaults().Where(criteria), opts)
	})
}

// FindSpec returns the entities matching s.
func (r *Repository[T]) FindSpec(ctx context.Context, s spec.Specification[T], opts QueryOptions) result.Result[[]T] {
	return observe(ctx, r, "find_spec", opts.CommandTimeout, func(ctx context.Context) ([]T, error) {
		return r.list(ctx, s, opts)
	})
}

// FirstOrDefault returns the first entity matching s, or a Success holding
// the zero value when nothing matches.
func (r *Repository[T]) FirstOrDefault(ctx context.Context, s spec.Specification[T], opts ...QueryOptions) result.Result[T] {
	o := ReadOnly
	if len(opts) > 0 {
		o = opts[0]
	}
	return observe(ctx, r, "first_or_default", o.CommandTimeout, func(ctx context.Context) (T, error) {
		var zero T
		items, err := r.list(ctx, s.Take(1), o)
		if err != nil || len(items) == 0 {
			return zero, err
		}
		return items[0], nil
	})
}

// Exists reports whether a non-deleted entity with id exists.
func (r *Repository[T]) Exists(ctx context.Context, id int64) result.Result[bool] {
	return observe(ctx, r, "exists", 0, func(ctx context.Context) (bool, error) {
		n, err := r.count(ctx, spec.Where[T](spec.Eq(storage.ColumnID, id)))
		return n > 0, err
	})
}

// Count returns the number of non-deleted entities matching criteria.
func (r *Repository[T]) Count(ctx context.Context, criteria spec.Criteria) result.Result[int64] {
	return observe(ctx, r, "count", 0, func(ctx context.Context) (int64, error) {
		return r.count(ctx, spec.Where[T](criteria))
	})
}

// CountSpec counts the entities matching s, ignoring its ordering and paging.
func (r *Repository[T]) CountSpec(ctx context.Context, s spec.Specification[T]) result.Result[int64] {
	return observe(ctx, r, "count_spec", 0, func(ctx context.Context) (int64, error) {
		return r.count(ctx, s)
	})
}

// Any reports whether any entity matches s.
func (r *Repository[T]) Any(ctx context.Context, s spec.Specification[T]) result.Result[bool] {
	return observe(ctx, r, "any", 0, func(ctx context.Context) (bool, error) {
		n, err := r.count(ctx, s)
		return n > 0, err
	})
}

// GetPaged returns one page of non-deleted entities matching filter.
// page is clamped to >= 1 and pageSize to [1, MaxPageSize].
func (r *Repository[T]) GetPaged(ctx context.Context, page, pageSize int, filter spec.Criteria, includes []string, opts QueryOptions) result.Result[result.PagedList[T]] {
	return r.GetPagedSpec(ctx, page, pageSize, spec.Where[T](filter).Include(includes...), opts)
}

// GetPagedSpec is GetPaged driven by a specification. Paging set on s is replaced.
func (r *Repository[T]) GetPagedSpec(ctx context.Context, page, pageSize int, s spec.Specification[T], opts QueryOptions) result.Result[result.PagedList[T]] {
	page, pageSize = ClampPage(page, pageSize)
	return observe(ctx, r, "get_paged", opts.CommandTimeout, func(ctx context.Context) (result.PagedList[T], error) {
		total, err := r.count(ctx, s)
		if err != nil {
			return result.PagedList[T]{}, err
		}
		items, err := r.list(ctx, s.Paginate(page, pageSize), opts)
		if err != nil {
			return result.PagedList[T]{}, err
		}
		return result.PagedList[T]{Items: items, TotalCount: total, Page: page, PageSize: pageSize}, nil
	})
}

func (r *Repository[T]) validate(ctx context.Context, e T) error {
	if isNil(e) || e.Meta() == nil {
		return apperror.NewValidation(fmt.Sprintf("%s is required", r.cfg.EntityName))
	}
	if v, ok := any(e).(entity.Validatable); ok {
		return v.Validate(ctx)
	}
	return nil
}

func (r *Repository[T]) checkUnique(ctx context.Context, e T) error {
	for _, rule := range r.cfg.Unique {
		v := rule.Value(e)
		if v == nil || v == "" {
			continue
		}
		c := spec.And(spec.Eq(rule.Field, v), spec.Eq(storage.ColumnIsDeleted, false))
		if id := e.Meta().ID; id != 0 {
			c = spec.And(c, spec.NotEq(storage.ColumnID, id))
		}
		n, err := r.session().Count(ctx, storage.From(r.cfg.Table).Where(c))
		if err != nil {
			return fmt.Errorf("check unique %s.%s: %w", r.cfg.Table, rule.Field, err)
		}
		if n > 0 {
			return apperror.NewDuplicate(r.cfg.EntityName, rule.Field, fmt.Sprint(v))
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// insertRow encodes a new entity without its id.
func insertRow(e entity.Record) map[string]any {
	row := storage.EncodeRow(e)
	delete(row, storage.ColumnID)
	return row
}

// Add validates, stamps creation audit fields and persists e, returning it with its new id.
func (r *Repository[T]) Add(ctx context.Context, e T) result.Result[T] {
	return observe(ctx, r, "add", 0, func(ctx context.Context) (T, error) {
		var zero T
		if err := r.validate(ctx, e); err != nil {
			return zero, err
		}
		meta := e.Meta()
		if !meta.IsNew() {
			return zero, apperror.NewValidation(fmt.Sprintf("new %s must not carry an id", r.cfg.EntityName)).
				WithDetail("id", meta.ID)
		}
		if meta.Lifecycle == entity.Deleted {
			return zero, apperror.NewValidation(fmt.Sprintf("new %s must not be deleted", r.cfg.EntityName))
		}
		if err := r.checkUnique(ctx, e); err != nil {
			return zero, err
		}
		prev := *meta
		meta.StampCreated(r.deps.Clock(), appctx.Actor(ctx))
		if meta.Version == 0 {
			meta.Version = 1
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}
		id, err := r.session().Insert(ctx, r.cfg.Table, insertRow(e))
		if err != nil {
			*meta = prev
			return zero, fmt.Errorf("insert %s: %w", r.cfg.Table, err)
		}
		meta.ID = id
		r.restoreOnRollback(meta, prev)

		r.afterWrite(ctx)
		return e, nil
	})
}

// AddRange persists entities in one round trip. Nothing is written when any entity is invalid.
func (r *Repository[T]) AddRange(ctx context.Context, items []T) result.Result[[]T] {
	return observe(ctx, r, "add_range", 0, func(ctx context.Context) ([]T, error) {
		if len(items) == 0 {
			return items, nil
		}
		var errs []string
		for i, e := range items {
			if err := r.validate(ctx, e); err != nil {
				errs = append(errs, fmt.Sprintf("item %d: %s", i, validationText(err)))
				continue
			}
			if !e.Meta().IsNew() {
				errs = append(errs, fmt.Sprintf("item %d: new %s must not carry an id", i, r.cfg.EntityName))
			}
			if e.Meta().Lifecycle == entity.Deleted {
				errs = append(errs, fmt.Sprintf("item %d: new %s must not be deleted", i, r.cfg.EntityName))
			}
		}
		if len(errs) > 0 {
			return nil, apperror.NewValidation(fmt.Sprintf("invalid %s batch", r.cfg.EntityName)).WithErrors(errs...)
		}

		for _, e := range items {
			if err := r.checkUnique(ctx, e); err != nil {
				return nil, err
			}
		}

		now, actor := r.deps.Clock(), appctx.Actor(ctx)
		prev := make([]entity.Base, len(items))
		rows := make([]map[string]any, len(items))
		for i, e := range items {
			meta := e.Meta()
			prev[i] = *meta
			meta.StampCreated(now, actor)
			if meta.Version == 0 {
				meta.Version = 1
			}
			rows[i] = insertRow(e)
		}
		restore := func() {
			for i, e := range items {
				*e.Meta() = prev[i]
			}
		}

		if err := ctx.Err(); err != nil {
			restore()
			return nil, err
		}
		ids, err := r.session().InsertMany(ctx, r.cfg.Table, rows)
		if err != nil {
			restore()
			return nil, fmt.Errorf("insert %s batch: %w", r.cfg.Table, err)
		}
		for i, id := range ids {
			items[i].Meta().ID = id
		}
		r.onRollback(restore)

		r.afterWrite(ctx)
		return items, nil
	})
}

func validationText(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		if len(appErr.Errors) > 0 {
			return fmt.Sprintf("%s (%v)", appErr.Message, appErr.Errors)
		}
		return appErr.Message
	}
	return err.Error()
}

// Update loads the stored row, copies the values of e onto it, re-stamps the
// update audit fields and writes it back guarded by the version e was read with.
// Id, creation audit fields and the lifecycle cannot be changed through Update;
// SetActive and Delete own the lifecycle.
func (r *Repository[T]) Update(ctx context.Context, e T) result.Result[T] {
	return observe(ctx, r, "update", 0, func(ctx context.Context) (T, error) {
		var zero T
		if err := r.validate(ctx, e); err != nil {
			return zero, err
		}
		id := e.Meta().ID
		if id == 0 {
			return zero, r.notFound(id)
		}

		current, err := r.load(ctx, id, false)
		if err != nil {
			return zero, err
		}
		cur := current.Meta()
		expectedVersion := e.Meta().Version
		if expectedVersion != cur.Version {
			return zero, apperror.NewConcurrentModification(r.cfg.EntityName, id)
		}
		if err := r.checkUnique(ctx, e); err != nil {
			return zero, err
		}

		keep := *cur
		if err := storage.DecodeRow(storage.EncodeRow(e), current); err != nil {
			return zero, err
		}
		*cur = keep
		cur.Touch(r.deps.Clock(), appctx.Actor(ctx))

		row := storage.EncodeRow(current)
		for _, col := range []string{storage.ColumnID, storage.ColumnVersion, "created_at", "created_by"} {
			delete(row, col)
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}
		n, err := r.session().Update(ctx, r.cfg.Table, id, expectedVersion, row)
		if err != nil {
			return zero, fmt.Errorf("update %s: %w", r.cfg.Table, err)
		}
		if n == 0 {
			return zero, apperror.NewConcurrentModification(r.cfg.EntityName, id)
		}
		cur.Version = expectedVersion + 1
		r.restoreOnRollback(e.Meta(), *e.Meta())
		syncMeta(e, current)

		r.afterWrite(ctx, id)
		return current, nil
	})
}

// setLifecycle writes a lifecycle transition and the update audit fields.
func (r *Repository[T]) setLifecycle(ctx context.Context, current T) error {
	meta := current.Meta()
	meta.Touch(r.deps.Clock(), appctx.Actor(ctx))
	isActive, isDeleted := meta.Lifecycle.Flags()
	row := map[string]any{
		storage.ColumnIsActive:  isActive,
		storage.ColumnIsDeleted: isDeleted,
		"updated_at":            meta.UpdatedAt,
		"updated_by":            meta.UpdatedBy,
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := r.session().Update(ctx, r.cfg.Table, meta.ID, meta.Version, row)
	if err != nil {
		return fmt.Errorf("update %s lifecycle: %w", r.cfg.Table, err)
	}
	if n == 0 {
		return apperror.NewConcurrentModification(r.cfg.EntityName, meta.ID)
	}
	meta.Version++
	r.afterWrite(ctx, meta.ID)
	return nil
}

// Delete soft-deletes the entity. It does not check dependent rows.
func (r *Repository[T]) Delete(ctx context.Context, id int64) result.Result[bool] {
	return observe(ctx, r, "delete", 0, func(ctx context.Context) (bool, error) {
		current, err := r.load(ctx, id, false)
		if err != nil {
			return false, err
		}
		current.Meta().MarkDeleted()
		if err := r.setLifecycle(ctx, current); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Restore brings a soft-deleted entity back as active. Restoring a live entity
// returns it unchanged.
func (r *Repository[T]) Restore(ctx context.Context, id int64) result.Result[T] {
	return observe(ctx, r, "restore", 0, func(ctx context.Context) (T, error) {
		var zero T
		current, err := r.load(ctx, id, true)
		if err != nil {
			return zero, err
		}
		if !current.Meta().Restore() {
			return current, nil
		}
		if err := r.setLifecycle(ctx, current); err != nil {
			return zero, err
		}
		return current, nil
	})
}

// SetActive toggles between active and inactive. Deleted entities are NotFound.
func (r *Repository[T]) SetActive(ctx context.Context, id int64, active bool) result.Result[T] {
	return observe(ctx, r, "set_active", 0, func(ctx context.Context) (T, error) {
		var zero T
		current, err := r.load(ctx, id, false)
		if err != nil {
			return zero, err
		}
		var changed bool
		if active {
			changed = current.Meta().Activate()
		} else {
			changed = current.Meta().Deactivate()
		}
		if !changed {
			return current, nil
		}
		if err := r.setLifecycle(ctx, current); err != nil {
			return zero, err
		}
		return current, nil
	})
}

// GetOrCache returns the entities matching filter through the cache. Without
// a cache service it behaves like Find. Cache failures fall back to a direct
// query; failed queries are never cached. Cached entities are shared between
// callers and must be treated as read-only.
func (r *Repository[T]) GetOrCache(ctx context.Context, key string, filter spec.Criteria, includes []string, expiration time.Duration, opts QueryOptions) result.Result[[]T] {
	opts.TrackingEnabled = false
	s := r.defaults().Where(filter).Include(includes...)

	return observe(ctx, r, "get_or_cache", opts.CommandTimeout, func(ctx context.Context) ([]T, error) {
		if r.deps.Cache == nil {
			return r.list(ctx, s, opts)
		}
		return cachedCall(ctx, r, key, expiration, func(ctx context.Context) ([]T, error) {
			return r.list(ctx, s, opts)
		})
	})
}

// GetByIDOrCache is the single-entity GetOrCache. An empty key uses the id.
func (r *Repository[T]) GetByIDOrCache(ctx context.Context, key string, id int64, expiration time.Duration) result.Result[T] {
	if key == "" {
		key = strconv.FormatInt(id, 10)
	}
	return observe(ctx, r, "get_by_id_or_cache", 0, func(ctx context.Context) (T, error) {
		fetch := func(ctx context.Context) (T, error) {
			items, err := r.list(ctx, r.defaults().Where(spec.Eq(storage.ColumnID, id)).Take(1), ReadOnly)
			if err != nil {
				var zero T
				return zero, err
			}
			if len(items) == 0 {
				var zero T
				return zero, r.notFound(id)
			}
			return items[0], nil
		}
		if r.deps.Cache == nil {
			return fetch(ctx)
		}
		return cachedCall(ctx, r, key, expiration, fetch)
	})
}

// queryError marks factory errors so they are not mistaken for cache failures.
type queryError struct{ err error }

func (e queryError) Error() string { return e.err.Error() }
func (e queryError) Unwrap() error { return e.err }

func cachedCall[T entity.Record, V any](ctx context.Context, r *Repository[T], key string, expiration time.Duration, fetch func(ctx context.Context) (V, error)) (V, error) {
	fullKey := cache.Key(r.deps.CachePrefix, r.cfg.EntityName, key)
	v, err := cache.GetOrCreate(ctx, r.deps.Cache, fullKey, func(ctx context.Context) (V, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, queryError{err}
		}
		return v, nil
	}, cache.WithExpiration(expiration))
	if err == nil {
		return v, nil
	}

	var qe queryError
	if errors.As(err, &qe) {
		return v, qe.err
	}
	logger.Warn(ctx, "cache unavailable, querying store directly",
		"entity", r.cfg.EntityName, "key", fullKey, "error", err)
	return fetch(ctx)
}

// InvalidateCache drops every cached entry of this entity type.
func (r *Repository[T]) InvalidateCache(ctx context.Context) {
	if r.deps.Cache == nil {
		return
	}
	r.deps.Cache.RemoveByPrefix(ctx, cache.EntityPrefix(r.deps.CachePrefix, r.cfg.EntityName))
}

// InvalidateCacheKey drops one cached entry of this entity type.
func (r *Repository[T]) InvalidateCacheKey(ctx context.Context, key string) {
	if r.deps.Cache == nil {
		return
	}
	r.deps.Cache.Remove(ctx, cache.Key(r.deps.CachePrefix, r.cfg.EntityName, key))
}

// onRollback registers fn to run if the open transaction rolls back.
// Outside a transaction the write is final and fn is dropped.
func (r *Repository[T]) onRollback(fn func()) {
	if h, ok := r.deps.Sessions.(RollbackHooker); ok {
		h.OnRollback(fn)
	}
}

// restoreOnRollback puts prev back into meta when the write is rolled back.
func (r *Repository[T]) restoreOnRollback(meta *entity.Base, prev entity.Base) {
	r.onRollback(func() { *meta = prev })
}

// afterWrite invalidates synchronously, and once more after commit when the
// write happened inside a transaction.
func (r *Repository[T]) afterWrite(ctx context.Context, ids ...int64) {
	if r.deps.Cache == nil {
		return
	}
	r.InvalidateCache(ctx)
	for _, id := range ids {
		r.InvalidateCacheKey(ctx, strconv.FormatInt(id, 10))
	}
	if ac, ok := r.deps.Sessions.(AfterCommitter); ok {
		ac.AfterCommit(r.InvalidateCache)
	}
}
