package catalog

import (
	"stockroom/internal/domain"
	"stockroom/internal/domain/model"
)

// SupplierService manages suppliers.
type SupplierService struct {
	*domain.CatalogService[*model.Supplier]
}

// NewSupplierService creates a supplier service over u.
func NewSupplierService(u *domain.UnitOfWork) *SupplierService {
	return &SupplierService{
		CatalogService: domain.NewCatalogService(domain.CatalogServiceConfig[*model.Supplier]{
			Repo:         u.Suppliers(),
			TxManager:    u,
			SearchFields: []string{"name", "email"},
		}),
	}
}
