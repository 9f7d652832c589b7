// Package model holds the inventory entities and their persistence configs.
package model

import (
	"context"
	"strings"
	"unicode/utf8"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
)

// Category groups products.
type Category struct {
	entity.Base

	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// NewCategory creates an active Category.
func NewCategory(name, description string) *Category {
	return &Category{Name: strings.TrimSpace(name), Description: description}
}

// Validate implements entity.Validatable.
func (c *Category) Validate(ctx context.Context) error {
	var v entity.Violations
	v.Check(strings.TrimSpace(c.Name) != "", "name", "name is required")
	v.Check(utf8.RuneCountInString(c.Name) <= 100, "name", "name must be at most 100 characters")
	v.Check(utf8.RuneCountInString(c.Description) <= 500, "description", "description must be at most 500 characters")
	return v.Err("Category")
}

// CategoryConfig is the repository configuration for categories.
func CategoryConfig() repository.Config[*Category] {
	return repository.Config[*Category]{
		Table:      TableCategories,
		EntityName: "Category",
		New:        func() *Category { return &Category{} },
		Unique: []repository.UniqueRule[*Category]{
			{Field: "name", Value: func(c *Category) any { return c.Name }},
		},
	}
}
