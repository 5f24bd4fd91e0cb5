package models

import (
	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/identity"
)

// BusinessModel is the persistence model for the Business domain entity.
type BusinessModel struct {
	BaseModel
	Name         string                  `gorm:"type:varchar(200);not null"`
	TenantID     string                  `gorm:"type:varchar(63);not null;uniqueIndex"`
	CurrencyCode string                  `gorm:"type:char(3);not null"`
	Status       identity.BusinessStatus `gorm:"type:varchar(20);not null;default:'active';index"`
}

// TableName returns the table name for GORM
func (BusinessModel) TableName() string {
	return "businesses"
}

// ToDomain converts the persistence model to a domain Business entity.
func (m *BusinessModel) ToDomain() *identity.Business {
	return &identity.Business{
		BaseEntity:   m.BaseModel.ToDomain(),
		Name:         m.Name,
		TenantID:     m.TenantID,
		CurrencyCode: m.CurrencyCode,
		Status:       m.Status,
	}
}

// FromDomain populates the persistence model from a domain Business entity.
func (m *BusinessModel) FromDomain(b *identity.Business) {
	m.FromDomainBaseEntity(b.BaseEntity)
	m.Name = b.Name
	m.TenantID = b.TenantID
	m.CurrencyCode = b.CurrencyCode
	m.Status = b.Status
}

// BusinessModelFromDomain creates a new persistence model from a domain Business entity.
func BusinessModelFromDomain(b *identity.Business) *BusinessModel {
	m := &BusinessModel{}
	m.FromDomain(b)
	return m
}

// BusinessUserModel is the persistence model for the BusinessUser entity.
// Emails are stored lowercased, so the unique index is case-insensitive in effect.
type BusinessUserModel struct {
	BaseModel
	BusinessID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Email      string            `gorm:"type:varchar(254);not null;uniqueIndex"`
	Role       identity.UserRole `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (BusinessUserModel) TableName() string {
	return "business_users"
}

// ToDomain converts the persistence model to a domain BusinessUser entity.
func (m *BusinessUserModel) ToDomain() *identity.BusinessUser {
	return &identity.BusinessUser{
		BaseEntity: m.BaseModel.ToDomain(),
		BusinessID: m.BusinessID,
		Email:      m.Email,
		Role:       m.Role,
	}
}

// BusinessUserModelFromDomain creates a new persistence model from a domain BusinessUser entity.
func BusinessUserModelFromDomain(u *identity.BusinessUser) *BusinessUserModel {
	m := &BusinessUserModel{
		BusinessID: u.BusinessID,
		Email:      u.Email,
		Role:       u.Role,
	}
	m.FromDomainBaseEntity(u.BaseEntity)
	return m
}

// CurrencyModel is a row of the global currency table.
type CurrencyModel struct {
	Code   string `gorm:"type:char(3);primaryKey"`
	Name   string `gorm:"type:varchar(100);not null"`
	Symbol string `gorm:"type:varchar(10);not null;default:''"`
}

// TableName returns the table name for GORM
func (CurrencyModel) TableName() string {
	return "currencies"
}

// ToDomain converts the persistence model to a domain Currency.
func (m *CurrencyModel) ToDomain() identity.Currency {
	return identity.Currency{Code: m.Code, Name: m.Name, Symbol: m.Symbol}
}
