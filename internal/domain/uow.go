package domain

import (
	"context"

	"stockroom/internal/core/repository"
	"stockroom/internal/core/storage"
	"stockroom/internal/core/uow"
	"stockroom/internal/domain/model"
	"stockroom/pkg/logger"
)

// UnitOfWork is the inventory unit of work with typed repository accessors.
type UnitOfWork struct {
	*uow.UnitOfWork
}

// Products returns the product repository.
func (u *UnitOfWork) Products() *repository.Repository[*model.Product] {
	return uow.Repo(u.UnitOfWork, model.ProductConfig())
}

// Categories returns the category repository.
func (u *UnitOfWork) Categories() *repository.Repository[*model.Category] {
	return uow.Repo(u.UnitOfWork, model.CategoryConfig())
}

// Suppliers returns the supplier repository.
func (u *UnitOfWork) Suppliers() *repository.Repository[*model.Supplier] {
	return uow.Repo(u.UnitOfWork, model.SupplierConfig())
}

// StockMovements returns the stock history repository.
func (u *UnitOfWork) StockMovements() *repository.Repository[*model.StockMovement] {
	return uow.Repo(u.UnitOfWork, model.StockMovementConfig())
}

// Notifications returns the notification repository.
func (u *UnitOfWork) Notifications() *repository.Repository[*model.Notification] {
	return uow.Repo(u.UnitOfWork, model.NotificationConfig())
}

// Factory creates one UnitOfWork per logical request.
type Factory struct {
	store storage.Store
	opts  []uow.Option
}

// NewFactory creates a factory whose units share store and opts.
func NewFactory(store storage.Store, opts ...uow.Option) *Factory {
	return &Factory{store: store, opts: opts}
}

// New creates a unit of work.
func (f *Factory) New() *UnitOfWork {
	return &UnitOfWork{UnitOfWork: uow.New(f.store, f.opts...)}
}

// Do runs fn with a fresh unit of work and closes it afterwards, rolling back
// a transaction fn left open.
func (f *Factory) Do(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) error {
	u := f.New()
	defer func() {
		if err := u.Close(ctx); err != nil {
			logger.Warn(ctx, "closing unit of work", "error", err)
		}
	}()
	return fn(ctx, u)
}
