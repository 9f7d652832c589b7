// Package catalog holds the category, supplier and product services.
package catalog

import (
	"context"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/domain"
	"stockroom/internal/domain/model"
)

// CategoryService manages categories. A category with active products cannot be deleted.
type CategoryService struct {
	*domain.CatalogService[*model.Category]
	u *domain.UnitOfWork
}

// NewCategoryService creates a category service over u.
func NewCategoryService(u *domain.UnitOfWork) *CategoryService {
	s := &CategoryService{
		CatalogService: domain.NewCatalogService(domain.CatalogServiceConfig[*model.Category]{
			Repo:         u.Categories(),
			TxManager:    u,
			SearchFields: []string{"name", "description"},
		}),
		u: u,
	}
	s.Hooks().On(domain.BeforeDelete, s.guardProducts)
	return s
}

func (s *CategoryService) guardProducts(ctx context.Context, c *model.Category) error {
	n := s.u.Products().Count(ctx, spec.And(
		spec.Eq("category_id", c.ID),
		spec.Eq("is_active", true),
	))
	if !n.IsSuccess() {
		return n.Err()
	}
	if n.Value() > 0 {
		return apperror.NewHasDependents("Category", c.ID, "products", n.Value())
	}
	return nil
}

// CreateNamed adds a category with the given name and description.
func (s *CategoryService) CreateNamed(ctx context.Context, name, description string) result.Result[*model.Category] {
	return s.Create(ctx, model.NewCategory(name, description))
}
