package catalog

import (
	"context"
	"fmt"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/domain"
	"stockroom/internal/domain/model"
)

// ProductService manages products. Category and supplier references are
// checked before every write.
type ProductService struct {
	*domain.CatalogService[*model.Product]
	u *domain.UnitOfWork
}

// NewProductService creates a product service over u.
func NewProductService(u *domain.UnitOfWork) *ProductService {
	s := &ProductService{
		CatalogService: domain.NewCatalogService(domain.CatalogServiceConfig[*model.Product]{
			Repo:         u.Products(),
			TxManager:    u,
			SearchFields: []string{"sku", "name"},
		}),
		u: u,
	}
	s.Hooks().On(domain.BeforeCreate, s.checkReferences)
	s.Hooks().On(domain.BeforeUpdate, s.checkReferences)
	return s
}

func (s *ProductService) checkReferences(ctx context.Context, p *model.Product) error {
	var errs []string
	if p.CategoryID > 0 {
		ok := s.u.Categories().Exists(ctx, p.CategoryID)
		if err := ok.Err(); err != nil {
			return err
		}
		if !ok.Value() {
			errs = append(errs, fmt.Sprintf("category %d does not exist", p.CategoryID))
		}
	}
	if p.SupplierID != nil {
		ok := s.u.Suppliers().Exists(ctx, *p.SupplierID)
		if err := ok.Err(); err != nil {
			return err
		}
		if !ok.Value() {
			errs = append(errs, fmt.Sprintf("supplier %d does not exist", *p.SupplierID))
		}
	}
	if len(errs) > 0 {
		return apperror.NewValidation("Product references are invalid").WithErrors(errs...)
	}
	return nil
}

// Apply loads the product, applies changes and writes it back. Nothing is
// written when the changes match the stored values.
func (s *ProductService) Apply(ctx context.Context, id int64, changes model.ProductChanges) result.Result[*model.Product] {
	return domain.InTransaction(ctx, s.u, func(ctx context.Context) result.Result[*model.Product] {
		current := s.Repo().GetByID(ctx, id, false)
		if !current.IsSuccess() {
			return current
		}
		p := current.Value()
		if !changes.Apply(p) {
			return current
		}
		return s.Update(ctx, p)
	})
}

// BySKU returns the product with sku, including its category and supplier.
func (s *ProductService) BySKU(ctx context.Context, sku string) result.Result[*model.Product] {
	res := s.Repo().FirstOrDefault(ctx, spec.Where[*model.Product](spec.Eq("sku", sku)).
		Include(model.IncludeCategory, model.IncludeSupplier))
	if res.IsSuccess() && res.Value() == nil {
		return result.NotFound[*model.Product]("Product " + sku)
	}
	return res
}

// InCategory lists one page of a category's products.
func (s *ProductService) InCategory(ctx context.Context, categoryID int64, page, pageSize int) result.Result[result.PagedList[*model.Product]] {
	return s.Repo().GetPaged(ctx, page, pageSize, spec.Eq("category_id", categoryID),
		[]string{model.IncludeSupplier}, repository.ReadOnlySplit)
}

// Catalog returns every product with its category, served from the cache
// when one is configured.
func (s *ProductService) Catalog(ctx context.Context) result.Result[[]*model.Product] {
	return s.Repo().GetOrCache(ctx, "catalog", nil,
		[]string{model.IncludeCategory, model.IncludeSupplier}, 0, repository.ReadOnlySplit)
}
