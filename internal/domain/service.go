// Package domain wires the inventory entities to the persistence core: the
// typed unit of work, the generic catalog service and its lifecycle hooks.
package domain

import (
	"context"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
	"stockroom/internal/core/tx"
	"stockroom/pkg/logger"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches any of the service's search fields, case-insensitively.
	Search string

	// IDs restricts the result to the given ids.
	IDs []int64

	// Criteria is ANDed with the other filters.
	Criteria spec.Criteria

	// IncludeDeleted includes soft-deleted records.
	IncludeDeleted bool

	// Includes lists eager-load paths.
	Includes []string

	// OrderBy specifies sorting, e.g. "name" or "-created_at".
	OrderBy string

	Page     int
	PageSize int
}

// DefaultListFilter returns the first page of 50.
func DefaultListFilter() ListFilter {
	return ListFilter{Page: 1, PageSize: 50}
}

// CatalogService provides validated, hook-aware CRUD over one entity type.
// Writes and their before-hooks run in one transaction; after-hooks run once
// it has committed and never fail the operation.
type CatalogService[T entity.Record] struct {
	repo         *repository.Repository[T]
	txManager    tx.Manager
	hooks        *HookRegistry[T]
	searchFields []string
}

// CatalogServiceConfig configures the catalog service.
type CatalogServiceConfig[T entity.Record] struct {
	Repo      *repository.Repository[T]
	TxManager tx.Manager
	// Hooks defaults to an empty registry.
	Hooks        *HookRegistry[T]
	SearchFields []string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T entity.Record](cfg CatalogServiceConfig[T]) *CatalogService[T] {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NewHookRegistry[T]()
	}
	return &CatalogService[T]{
		repo:         cfg.Repo,
		txManager:    cfg.TxManager,
		hooks:        hooks,
		searchFields: cfg.SearchFields,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// Repo returns the underlying repository.
func (s *CatalogService[T]) Repo() *repository.Repository[T] {
	return s.repo
}

func (s *CatalogService[T]) after(ctx context.Context, event HookEvent, e T) {
	if err := s.hooks.Run(ctx, event, e); err != nil {
		logger.Warn(ctx, "after hook failed",
			"entity", s.repo.EntityName(), "event", string(event), "error", err)
	}
}

// Create validates and persists a new entity.
func (s *CatalogService[T]) Create(ctx context.Context, e T) result.Result[T] {
	res := InTransaction(ctx, s.txManager, func(ctx context.Context) result.Result[T] {
		if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
			return result.FromError[T](err)
		}
		return s.repo.Add(ctx, e)
	})
	if res.IsSuccess() {
		s.after(ctx, AfterCreate, res.Value())
	}
	return res
}

// GetByID retrieves a non-deleted entity.
func (s *CatalogService[T]) GetByID(ctx context.Context, id int64, includes ...string) result.Result[T] {
	if len(includes) == 0 {
		return s.repo.GetByID(ctx, id, false)
	}
	res := s.repo.FirstOrDefault(ctx, spec.Where[T](spec.Eq(storage.ColumnID, id)).Include(includes...))
	if res.IsSuccess() && isZero(res.Value()) {
		return result.FromError[T](notFound(s.repo.EntityName(), id))
	}
	return res
}

// Update validates and writes an existing entity under optimistic locking.
func (s *CatalogService[T]) Update(ctx context.Context, e T) result.Result[T] {
	res := InTransaction(ctx, s.txManager, func(ctx context.Context) result.Result[T] {
		if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
			return result.FromError[T](err)
		}
		return s.repo.Update(ctx, e)
	})
	if res.IsSuccess() {
		s.after(ctx, AfterUpdate, res.Value())
	}
	return res
}

// Delete soft-deletes the entity once the before-delete hooks allow it.
func (s *CatalogService[T]) Delete(ctx context.Context, id int64) result.Result[bool] {
	var deleted T
	res := InTransaction(ctx, s.txManager, func(ctx context.Context) result.Result[bool] {
		current := s.repo.GetByID(ctx, id, false)
		if !current.IsSuccess() {
			return result.Propagate[bool](current)
		}
		if err := s.hooks.Run(ctx, BeforeDelete, current.Value()); err != nil {
			return result.FromError[bool](err)
		}
		deleted = current.Value()
		return s.repo.Delete(ctx, id)
	})
	if res.IsSuccess() {
		s.after(ctx, AfterDelete, deleted)
	}
	return res
}

// Restore undoes a soft delete.
func (s *CatalogService[T]) Restore(ctx context.Context, id int64) result.Result[T] {
	return InTransaction(ctx, s.txManager, func(ctx context.Context) result.Result[T] {
		return s.repo.Restore(ctx, id)
	})
}

// SetActive switches the entity on or off.
func (s *CatalogService[T]) SetActive(ctx context.Context, id int64, active bool) result.Result[T] {
	return s.repo.SetActive(ctx, id, active)
}

// Exists checks if a non-deleted entity exists.
func (s *CatalogService[T]) Exists(ctx context.Context, id int64) result.Result[bool] {
	return s.repo.Exists(ctx, id)
}

// List returns one page of entities matching f.
func (s *CatalogService[T]) List(ctx context.Context, f ListFilter) result.Result[result.PagedList[T]] {
	return s.repo.GetPagedSpec(ctx, f.Page, f.PageSize, s.listSpec(f), repository.ReadOnly)
}

func (s *CatalogService[T]) listSpec(f ListFilter) spec.Specification[T] {
	sp := spec.Where[T](f.Criteria).Include(f.Includes...)
	if f.Search != "" && len(s.searchFields) > 0 {
		parts := make([]spec.Criteria, 0, len(s.searchFields))
		for _, field := range s.searchFields {
			parts = append(parts, spec.Contains(field, f.Search))
		}
		sp = sp.Where(spec.Or(parts...))
	}
	if len(f.IDs) > 0 {
		sp = sp.Where(spec.In(storage.ColumnID, f.IDs...))
	}
	if f.IncludeDeleted {
		sp = sp.IncludeDeleted()
	}
	if f.OrderBy != "" {
		o := spec.ParseOrder(f.OrderBy)
		if o.Desc {
			sp = sp.OrderByDescending(o.Field)
		} else {
			sp = sp.OrderBy(o.Field)
		}
	}
	return sp
}
