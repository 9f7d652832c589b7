// Package inventory adjusts stock levels and keeps the stock history and
// low-stock notifications consistent with them.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockroom/internal/core/repository"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/domain"
	"stockroom/internal/domain/model"
	"stockroom/pkg/logger"
)

// Service performs stock adjustments. Each adjustment writes the product,
// its history entry and any notification in one transaction.
type Service struct {
	u     *domain.UnitOfWork
	clock func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the clock used to acknowledge notifications.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates an inventory service over u.
func NewService(u *domain.UnitOfWork, opts ...Option) *Service {
	s := &Service{u: u, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Adjustment is one stock change request. A zero UnitCost records the
// product's current unit price.
type Adjustment struct {
	ProductID int64
	Delta     int
	Reason    model.MovementReason
	UnitCost  decimal.Decimal
	Note      string
}

// AdjustStock applies a.Delta to the product quantity. A result below zero is
// rejected and nothing is written. When a decrease leaves the quantity at or
// below the reorder level a notification is raised.
func (s *Service) AdjustStock(ctx context.Context, a Adjustment) result.Result[*model.StockMovement] {
	if a.Delta == 0 {
		return result.ValidationError[*model.StockMovement]("StockMovement is invalid", "delta must not be zero")
	}
	if !a.Reason.Valid() {
		return result.ValidationError[*model.StockMovement]("StockMovement is invalid",
			fmt.Sprintf("unknown reason %q", a.Reason))
	}

	return domain.InTransaction(ctx, s.u, func(ctx context.Context) result.Result[*model.StockMovement] {
		loaded := s.u.Products().GetForUpdate(ctx, a.ProductID)
		if !loaded.IsSuccess() {
			return result.Propagate[*model.StockMovement](loaded)
		}
		p := loaded.Value()

		after := p.Quantity + a.Delta
		if after < 0 {
			return result.ValidationError[*model.StockMovement]("insufficient stock",
				fmt.Sprintf("product %s has %d in stock, cannot remove %d", p.SKU, p.Quantity, -a.Delta))
		}

		p.Quantity = after
		if res := s.u.Products().Update(ctx, p); !res.IsSuccess() {
			return result.Propagate[*model.StockMovement](res)
		}

		m := &model.StockMovement{
			ProductID:     p.ID,
			Delta:         a.Delta,
			QuantityAfter: after,
			Reason:        a.Reason,
			UnitCost:      a.UnitCost,
		}
		if m.UnitCost.IsZero() {
			m.UnitCost = p.UnitPrice
		}
		if note := strings.TrimSpace(a.Note); note != "" {
			m.Note = &note
		}
		added := s.u.StockMovements().Add(ctx, m)
		if !added.IsSuccess() {
			return added
		}

		if a.Delta < 0 && p.IsLowStock() {
			if res := s.u.Notifications().Add(ctx, lowStockNotice(p)); !res.IsSuccess() {
				return result.Propagate[*model.StockMovement](res)
			}
			logger.Info(ctx, "low stock", "sku", p.SKU, "quantity", p.Quantity, "reorder_level", p.ReorderLevel)
		}
		return added
	})
}

// Receive adds qty units to stock.
func (s *Service) Receive(ctx context.Context, productID int64, qty int, note string) result.Result[*model.StockMovement] {
	return s.AdjustStock(ctx, Adjustment{ProductID: productID, Delta: qty, Reason: model.ReasonReceipt, Note: note})
}

// Sell removes qty units from stock.
func (s *Service) Sell(ctx context.Context, productID int64, qty int, note string) result.Result[*model.StockMovement] {
	return s.AdjustStock(ctx, Adjustment{ProductID: productID, Delta: -qty, Reason: model.ReasonSale, Note: note})
}

func lowStockNotice(p *model.Product) *model.Notification {
	id := p.ID
	n := &model.Notification{ProductID: &id, Kind: model.KindLowStock}
	if p.Quantity == 0 {
		n.Kind = model.KindOutOfStock
		n.Message = fmt.Sprintf("%s (%s) is out of stock", p.Name, p.SKU)
		return n
	}
	n.Message = fmt.Sprintf("%s (%s) is low on stock: %d left, reorder level %d", p.Name, p.SKU, p.Quantity, p.ReorderLevel)
	return n
}

// History returns one page of a product's stock movements, newest first.
func (s *Service) History(ctx context.Context, productID int64, page, pageSize int) result.Result[result.PagedList[*model.StockMovement]] {
	exists := s.u.Products().Exists(ctx, productID)
	if !exists.IsSuccess() {
		return result.Propagate[result.PagedList[*model.StockMovement]](exists)
	}
	if !exists.Value() {
		return result.NotFound[result.PagedList[*model.StockMovement]]("Product")
	}
	return s.u.StockMovements().GetPaged(ctx, page, pageSize,
		spec.Eq("product_id", productID), nil, repository.ReadOnly)
}

// Unread returns one page of unacknowledged notifications, newest first.
func (s *Service) Unread(ctx context.Context, page, pageSize int) result.Result[result.PagedList[*model.Notification]] {
	return s.u.Notifications().GetPaged(ctx, page, pageSize, model.Unread(), nil, repository.ReadOnly)
}

// MarkRead acknowledges a notification.
func (s *Service) MarkRead(ctx context.Context, id int64) result.Result[*model.Notification] {
	loaded := s.u.Notifications().GetByID(ctx, id, false)
	if !loaded.IsSuccess() {
		return loaded
	}
	n := loaded.Value()
	if !n.MarkRead(s.clock()) {
		return loaded
	}
	return s.u.Notifications().Update(ctx, n)
}
