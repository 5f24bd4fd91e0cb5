package models

import (
	"github.com/pos/backoffice/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
// The table lives in the tenant database and has no tenant column.
type ProductModel struct {
	BaseModel
	SKU    string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name   string          `gorm:"type:varchar(200);not null"`
	Price  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Active bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseEntity: m.BaseModel.ToDomain(),
		SKU:        m.SKU,
		Name:       m.Name,
		Price:      m.Price,
		Active:     m.Active,
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{
		SKU:    p.SKU,
		Name:   p.Name,
		Price:  p.Price,
		Active: p.Active,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}
