package model

import (
	"context"
	"regexp"
	"strings"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Supplier delivers products.
type Supplier struct {
	entity.Base

	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Phone string `db:"phone" json:"phone"`
}

// Validate implements entity.Validatable.
func (s *Supplier) Validate(ctx context.Context) error {
	var v entity.Violations
	v.Check(strings.TrimSpace(s.Name) != "", "name", "name is required")
	v.Check(len(s.Name) <= 200, "name", "name must be at most 200 characters")
	if s.Email != "" {
		v.Check(emailRe.MatchString(s.Email), "email", "email %q is not valid", s.Email)
	}
	return v.Err("Supplier")
}

// SupplierConfig is the repository configuration for suppliers.
func SupplierConfig() repository.Config[*Supplier] {
	return repository.Config[*Supplier]{
		Table:      TableSuppliers,
		EntityName: "Supplier",
		New:        func() *Supplier { return &Supplier{} },
		Unique: []repository.UniqueRule[*Supplier]{
			{Field: "name", Value: func(s *Supplier) any { return s.Name }},
		},
	}
}
