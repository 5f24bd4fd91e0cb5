package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/catalog"
	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/pos/backoffice/internal/infrastructure/persistence/models"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository. Every call
// asks source for the database of the tenant active in ctx, so the same
// repository serves all tenants.
type GormProductRepository struct {
	source tenancy.ConnectionSource
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(source tenancy.ConnectionSource) *GormProductRepository {
	return &GormProductRepository{source: source}
}

// Save inserts or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	db, err := r.source.DB(ctx)
	if err != nil {
		return err
	}
	err = db.Save(models.ProductModelFromDomain(product)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.AlreadyExists("Product SKU already exists")
	}
	return err
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	db, err := r.source.DB(ctx)
	if err != nil {
		return nil, err
	}
	var model models.ProductModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsBySKU checks if a product with the given SKU exists
func (r *GormProductRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	db, err := r.source.DB(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&models.ProductModel{}).
		Where("sku = ?", strings.ToUpper(strings.TrimSpace(sku))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns products matching filter ordered by SKU, plus the total count.
func (r *GormProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	db, err := r.source.DB(ctx)
	if err != nil {
		return nil, 0, err
	}

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Search == "" {
			return tx
		}
		keyword := "%" + strings.ToLower(filter.Search) + "%"
		return tx.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", keyword, keyword)
	}

	var total int64
	if err := db.Model(&models.ProductModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ProductModel
	query := db.Scopes(scope).Order("sku ASC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, total, nil
}
