package identity

import (
	"context"

	"github.com/google/uuid"
)

// BusinessRepository persists the master registry.
type BusinessRepository interface {
	// Create stores a new business together with its owner.
	Create(ctx context.Context, business *Business, owner *BusinessUser) error
	FindByID(ctx context.Context, id uuid.UUID) (*Business, error)
	FindByTenantID(ctx context.Context, tenantID string) (*Business, error)
	ExistsByTenantID(ctx context.Context, tenantID string) (bool, error)
	UpdateStatus(ctx context.Context, business *Business) error
	// List returns businesses ordered by creation time.
	List(ctx context.Context, offset, limit int) ([]Business, int64, error)

	AddUser(ctx context.Context, user *BusinessUser) error
	UsersOf(ctx context.Context, businessID uuid.UUID) ([]BusinessUser, error)
	ExistsUserByEmail(ctx context.Context, email string) (bool, error)

	// TenantIDForUser returns the tenant of the active business the email
	// belongs to, or "" when there is none.
	TenantIDForUser(ctx context.Context, email string) (string, error)
	// ListTenantIDs returns the tenant of every business, active or not.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// CurrencyRepository reads the currency reference table.
type CurrencyRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]Currency, error)
}
