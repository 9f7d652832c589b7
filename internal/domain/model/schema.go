package model

import (
	"context"
	"fmt"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
)

// Table names.
const (
	TableCategories     = "categories"
	TableSuppliers      = "suppliers"
	TableProducts       = "products"
	TableStockMovements = "stock_movements"
	TableNotifications  = "notifications"
)

// Schema declares the tables with their unique indexes and foreign keys, in
// dependency order.
func Schema() []storage.TableDef {
	return []storage.TableDef{
		{
			Name:   TableCategories,
			Unique: []storage.UniqueIndex{{Name: "uq_categories_name", Columns: []string{"name"}}},
		},
		{
			Name:   TableSuppliers,
			Unique: []storage.UniqueIndex{{Name: "uq_suppliers_name", Columns: []string{"name"}}},
		},
		{
			Name:   TableProducts,
			Unique: []storage.UniqueIndex{{Name: "uq_products_sku", Columns: []string{"sku"}}},
			ForeignKeys: []storage.ForeignKey{
				{Column: "category_id", RefTable: TableCategories},
				{Column: "supplier_id", RefTable: TableSuppliers},
			},
		},
		{
			Name:        TableStockMovements,
			ForeignKeys: []storage.ForeignKey{{Column: "product_id", RefTable: TableProducts}},
		},
		{
			Name:        TableNotifications,
			ForeignKeys: []storage.ForeignKey{{Column: "product_id", RefTable: TableProducts}},
		},
	}
}

// belongsTo builds an include loader resolving a many-to-one reference with
// one query per batch. Soft-deleted targets are still attached.
func belongsTo[T entity.Record, R any, PR interface {
	*R
	entity.Record
}](table string, key func(T) *int64, set func(T, PR)) func(ctx context.Context, sess storage.Session, items []T) error {
	return func(ctx context.Context, sess storage.Session, items []T) error {
		seen := make(map[int64]struct{}, len(items))
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			if k := key(it); k != nil {
				if _, ok := seen[*k]; !ok {
					seen[*k] = struct{}{}
					ids = append(ids, *k)
				}
			}
		}
		if len(ids) == 0 {
			return nil
		}

		var refs []PR
		q := storage.From(table, storage.Columns[R]()...).Where(spec.In(storage.ColumnID, ids...))
		if err := sess.Select(ctx, &refs, q); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		byID := make(map[int64]PR, len(refs))
		for _, r := range refs {
			byID[r.Meta().ID] = r
		}
		for _, it := range items {
			if k := key(it); k != nil {
				if r, ok := byID[*k]; ok {
					set(it, r)
				}
			}
		}
		return nil
	}
}
