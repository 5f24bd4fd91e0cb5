// Package catalog is the tenant-scoped product catalog. Products live in
// the tenant database; they carry no tenant column because the database is
// the tenant.
package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item
type Product struct {
	shared.BaseEntity
	SKU    string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// NewProduct creates an active product. SKUs are stored uppercased.
func NewProduct(sku, name string, price decimal.Decimal) (*Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	name = strings.TrimSpace(name)

	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, shared.InvalidInput("Product name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return nil, shared.InvalidInput("Product name cannot exceed 200 characters")
	}
	if price.IsNegative() {
		return nil, shared.InvalidInput("Price cannot be negative")
	}

	return &Product{
		BaseEntity: shared.NewBaseEntity(),
		SKU:        sku,
		Name:       name,
		Price:      price.Round(4),
		Active:     true,
	}, nil
}

func validateSKU(sku string) error {
	if sku == "" {
		return shared.InvalidInput("SKU cannot be empty")
	}
	if len(sku) > 64 {
		return shared.InvalidInput("SKU cannot exceed 64 characters")
	}
	for _, r := range sku {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return shared.InvalidInput("SKU can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// ProductFilter narrows List.
type ProductFilter struct {
	Search string
	Offset int
	Limit  int
}

// ProductRepository reads and writes products of the current tenant.
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, int64, error)
}
