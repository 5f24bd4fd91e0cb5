// Package models holds the gorm persistence models. Master models live in
// the master database, catalog models in every tenant database.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// MasterModels lists the tables of the master database, in creation order.
func MasterModels() []any {
	return []any{&CurrencyModel{}, &BusinessModel{}, &BusinessUserModel{}}
}

// TenantModels lists the tables of every tenant database.
func TenantModels() []any {
	return []any{&ProductModel{}}
}
