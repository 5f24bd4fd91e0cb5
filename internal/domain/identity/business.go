// Package identity holds the master registry domain: businesses, the tenant
// each one owns, their users and the shared currency table.
package identity

import (
	"strings"
	"unicode/utf8"

	"github.com/pos/backoffice/internal/domain/shared"
)

// BusinessStatus represents the lifecycle state of a business.
type BusinessStatus string

const (
	BusinessStatusActive      BusinessStatus = "active"
	BusinessStatusDeactivated BusinessStatus = "deactivated"
)

// MaxBusinessNameLength bounds the display name.
const MaxBusinessNameLength = 200

// Business is a registered merchant. It owns exactly one tenant database,
// named by TenantID, which never changes and is never reused.
type Business struct {
	shared.BaseEntity
	Name         string
	TenantID     string
	CurrencyCode string
	Status       BusinessStatus
}

// NewBusiness creates an active business bound to tenantID.
func NewBusiness(name, tenantID, currencyCode string) (*Business, error) {
	name = strings.TrimSpace(name)
	if err := validateBusinessName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, shared.InvalidInput("Tenant identifier cannot be empty")
	}
	code, err := NormalizeCurrencyCode(currencyCode)
	if err != nil {
		return nil, err
	}

	return &Business{
		BaseEntity:   shared.NewBaseEntity(),
		Name:         name,
		TenantID:     tenantID,
		CurrencyCode: code,
		Status:       BusinessStatusActive,
	}, nil
}

// Deactivate marks the business deactivated. Its users stop resolving to
// the tenant; the tenant database is kept.
func (b *Business) Deactivate() error {
	if b.Status == BusinessStatusDeactivated {
		return shared.InvalidState("Business is already deactivated")
	}
	b.Status = BusinessStatusDeactivated
	b.Touch()
	return nil
}

// IsActive reports whether the business is active.
func (b *Business) IsActive() bool {
	return b.Status == BusinessStatusActive
}

func validateBusinessName(name string) error {
	if name == "" {
		return shared.InvalidInput("Business name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxBusinessNameLength {
		return shared.InvalidInput("Business name cannot exceed 200 characters")
	}
	return nil
}
