package model

import (
	"context"

	"github.com/shopspring/decimal"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/spec"
)

// MovementReason classifies a stock movement.
type MovementReason string

const (
	ReasonReceipt    MovementReason = "receipt"
	ReasonSale       MovementReason = "sale"
	ReasonReturn     MovementReason = "return"
	ReasonAdjustment MovementReason = "adjustment"
	ReasonWriteOff   MovementReason = "write_off"
)

// Valid reports whether r is a known reason.
func (r MovementReason) Valid() bool {
	switch r {
	case ReasonReceipt, ReasonSale, ReasonReturn, ReasonAdjustment, ReasonWriteOff:
		return true
	}
	return false
}

// StockMovement is one entry of a product's stock history.
type StockMovement struct {
	entity.Base

	ProductID     int64           `db:"product_id" json:"productId"`
	Delta         int             `db:"delta" json:"delta"`
	QuantityAfter int             `db:"quantity_after" json:"quantityAfter"`
	Reason        MovementReason  `db:"reason" json:"reason"`
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unitCost"`
	Note          *string         `db:"note" json:"note,omitempty"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// Validate implements entity.Validatable.
func (m *StockMovement) Validate(ctx context.Context) error {
	var v entity.Violations
	v.Check(m.ProductID > 0, "product_id", "product is required")
	v.Check(m.Delta != 0, "delta", "delta must not be zero")
	v.Check(m.QuantityAfter >= 0, "quantity_after", "resulting quantity must not be negative")
	v.Check(m.Reason.Valid(), "reason", "unknown reason %q", m.Reason)
	v.Check(!m.UnitCost.IsNegative(), "unit_cost", "unit cost must not be negative")
	return v.Err("StockMovement")
}

// Value returns the signed value of the movement at its unit cost.
func (m *StockMovement) Value() decimal.Decimal {
	return m.UnitCost.Mul(decimal.NewFromInt(int64(m.Delta)))
}

// StockMovementConfig is the repository configuration for stock history.
// History is listed newest first.
func StockMovementConfig() repository.Config[*StockMovement] {
	return repository.Config[*StockMovement]{
		Table:      TableStockMovements,
		EntityName: "StockMovement",
		New:        func() *StockMovement { return &StockMovement{} },
		Includes: map[string]repository.Loader[*StockMovement]{
			"Product": belongsTo(TableProducts,
				func(m *StockMovement) *int64 { return &m.ProductID },
				func(m *StockMovement, p *Product) { m.Product = p }),
		},
		DefaultOrder: []spec.Order{spec.Desc("created_at"), spec.Desc("id")},
	}
}
