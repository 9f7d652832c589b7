package model

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
)

// Include paths for products.
const (
	IncludeCategory = "Category"
	IncludeSupplier = "Supplier"
)

// Product is a stocked item.
type Product struct {
	entity.Base

	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	CategoryID   int64           `db:"category_id" json:"categoryId"`
	SupplierID   *int64          `db:"supplier_id" json:"supplierId,omitempty"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Quantity     int             `db:"quantity" json:"quantity"`
	ReorderLevel int             `db:"reorder_level" json:"reorderLevel"`

	Category *Category `db:"-" json:"category,omitempty"`
	Supplier *Supplier `db:"-" json:"supplier,omitempty"`
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	var v entity.Violations
	v.Check(strings.TrimSpace(p.SKU) != "", "sku", "sku is required")
	v.Check(len(p.SKU) <= 64, "sku", "sku must be at most 64 characters")
	v.Check(strings.TrimSpace(p.Name) != "", "name", "name is required")
	v.Check(p.CategoryID > 0, "category_id", "category is required")
	v.Check(!p.UnitPrice.IsNegative(), "unit_price", "unit price must not be negative")
	v.Check(p.Quantity >= 0, "quantity", "quantity must not be negative")
	v.Check(p.ReorderLevel >= 0, "reorder_level", "reorder level must not be negative")
	return v.Err("Product")
}

// IsLowStock reports whether the quantity is at or below the reorder level.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.ReorderLevel
}

// StockValue is quantity times unit price.
func (p *Product) StockValue() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// ProductChanges is a partial product update. Nil fields are left unchanged;
// a non-nil Quantity of 0 sets the quantity to 0.
type ProductChanges struct {
	Name          *string
	CategoryID    *int64
	SupplierID    *int64
	ClearSupplier bool
	UnitPrice     *decimal.Decimal
	Quantity      *int
	ReorderLevel  *int
}

// Apply writes the provided fields onto p and reports whether anything changed.
func (c ProductChanges) Apply(p *Product) bool {
	changed := false
	if c.Name != nil && *c.Name != p.Name {
		p.Name, changed = *c.Name, true
	}
	if c.CategoryID != nil && *c.CategoryID != p.CategoryID {
		p.CategoryID, changed = *c.CategoryID, true
	}
	switch {
	case c.ClearSupplier && p.SupplierID != nil:
		p.SupplierID, changed = nil, true
	case c.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *c.SupplierID):
		id := *c.SupplierID
		p.SupplierID, changed = &id, true
	}
	if c.UnitPrice != nil && !c.UnitPrice.Equal(p.UnitPrice) {
		p.UnitPrice, changed = *c.UnitPrice, true
	}
	if c.Quantity != nil && *c.Quantity != p.Quantity {
		p.Quantity, changed = *c.Quantity, true
	}
	if c.ReorderLevel != nil && *c.ReorderLevel != p.ReorderLevel {
		p.ReorderLevel, changed = *c.ReorderLevel, true
	}
	return changed
}

// ProductConfig is the repository configuration for products.
func ProductConfig() repository.Config[*Product] {
	return repository.Config[*Product]{
		Table:      TableProducts,
		EntityName: "Product",
		New:        func() *Product { return &Product{} },
		Includes: map[string]repository.Loader[*Product]{
			IncludeCategory: belongsTo(TableCategories,
				func(p *Product) *int64 { return &p.CategoryID },
				func(p *Product, c *Category) { p.Category = c }),
			IncludeSupplier: belongsTo(TableSuppliers,
				func(p *Product) *int64 { return p.SupplierID },
				func(p *Product, s *Supplier) { p.Supplier = s }),
		},
		Unique: []repository.UniqueRule[*Product]{
			{Field: "sku", Value: func(p *Product) any { return p.SKU }},
		},
	}
}
