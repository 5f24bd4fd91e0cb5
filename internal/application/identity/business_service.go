// Package identity implements business onboarding and membership on top of
// the master registry.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/domain/identity"
	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
)

const maxIdentifierAttempts = 5

// TenantProvisioner creates and migrates a tenant database.
type TenantProvisioner interface {
	ProvisionTenant(ctx context.Context, tenantID string) (*apptenancy.ProvisionResult, error)
	EvictTenant(ctx context.Context, tenantID string) error
}

// LookupInvalidator drops cached identity-to-tenant answers.
type LookupInvalidator interface {
	Invalidate(ctx context.Context, identityKeys ...string) error
}

// BusinessService handles business onboarding and membership.
type BusinessService struct {
	businesses  identity.BusinessRepository
	currencies  identity.CurrencyRepository
	provisioner TenantProvisioner
	lookups     LookupInvalidator
	logger      *zap.Logger

	// generateID is replaced in tests.
	generateID func(name string) (string, error)
}

// NewBusinessService creates a new BusinessService. lookups may be nil when
// tenant lookups are not cached.
func NewBusinessService(
	businesses identity.BusinessRepository,
	currencies identity.CurrencyRepository,
	provisioner TenantProvisioner,
	lookups LookupInvalidator,
	logger *zap.Logger,
) *BusinessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusinessService{
		businesses:  businesses,
		currencies:  currencies,
		provisioner: provisioner,
		lookups:     lookups,
		logger:      logger.Named("business_service"),
		generateID:  tenancy.GenerateIdentifier,
	}
}

// RegisterBusiness creates a business, provisions its tenant database and
// records the owner. The owner must not belong to another business.
func (s *BusinessService) RegisterBusiness(ctx context.Context, req RegisterBusinessRequest) (*RegisterBusinessResult, error) {
	start := time.Now()

	email, err := identity.NormalizeEmail(req.OwnerEmail)
	if err != nil {
		return nil, err
	}
	taken, err := s.businesses.ExistsUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.AlreadyExists("User already belongs to a business")
	}

	currency, err := identity.NormalizeCurrencyCode(req.CurrencyCode)
	if err != nil {
		return nil, err
	}
	known, err := s.currencies.Exists(ctx, currency)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, shared.InvalidInput("Unsupported currency")
	}

	tenantID, err := s.newTenantID(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	business, err := identity.NewBusiness(req.Name, tenantID, currency)
	if err != nil {
		return nil, err
	}
	owner, err := identity.NewBusinessUser(business.ID, email, identity.UserRoleOwner)
	if err != nil {
		return nil, err
	}

	if _, err := s.provisioner.ProvisionTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if err := s.businesses.Create(ctx, business, owner); err != nil {
		s.logger.Error("Tenant provisioned but business not recorded",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, err
	}
	if s.lookups != nil {
		if err := s.lookups.Invalidate(ctx, email); err != nil {
			s.logger.Warn("Failed to invalidate tenant lookup", zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	s.logger.Info("Business registered",
		zap.String("business_id", business.ID.String()),
		zap.String("tenant_id", tenantID),
		zap.Duration("elapsed", elapsed),
	)

	resp := ToBusinessResponse(business)
	resp.Users = []UserResponse{ToUserResponse(owner)}
	return &RegisterBusinessResult{
		Business:  resp,
		ElapsedMs: elapsed.Milliseconds(),
		Message:   fmt.Sprintf("Business %q registered in %d ms", business.Name, elapsed.Milliseconds()),
	}, nil
}

// AddUser adds a user to an active business.
func (s *BusinessService) AddUser(ctx context.Context, businessID uuid.UUID, req AddUserRequest) (*UserResponse, error) {
	business, err := s.businesses.FindByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive() {
		return nil, shared.InvalidState("Business is deactivated")
	}

	user, err := identity.NewBusinessUser(business.ID, req.Email, identity.UserRole(req.Role))
	if err != nil {
		return nil, err
	}
	taken, err := s.businesses.ExistsUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.AlreadyExists("User already belongs to a business")
	}

	if err := s.businesses.AddUser(ctx, user); err != nil {
		return nil, err
	}

	resp := ToUserResponse(user)
	return &resp, nil
}

// DeactivateBusiness stops the business's users from resolving to its tenant
// and closes the tenant pool. The tenant database and identifier are kept.
func (s *BusinessService) DeactivateBusiness(ctx context.Context, tenantID string) (*BusinessResponse, error) {
	business, err := s.businesses.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := business.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.businesses.UpdateStatus(ctx, business); err != nil {
		return nil, err
	}

	users, err := s.businesses.UsersOf(ctx, business.ID)
	if err != nil {
		s.logger.Warn("Failed to load users of deactivated business", zap.Error(err))
	}
	if s.lookups != nil && len(users) > 0 {
		emails := make([]string, len(users))
		for i := range users {
			emails[i] = users[i].Email
		}
		if err := s.lookups.Invalidate(ctx, emails...); err != nil {
			s.logger.Warn("Failed to invalidate tenant lookups", zap.Error(err))
		}
	}

	if err := s.provisioner.EvictTenant(ctx, tenantID); err != nil {
		s.logger.Warn("Failed to evict tenant pool", zap.String("tenant_id", tenantID), zap.Error(err))
	}

	s.logger.Info("Business deactivated",
		zap.String("business_id", business.ID.String()),
		zap.String("tenant_id", tenantID),
	)
	resp := ToBusinessResponse(business)
	return &resp, nil
}

// GetBusiness returns a business with its users.
func (s *BusinessService) GetBusiness(ctx context.Context, id uuid.UUID) (*BusinessResponse, error) {
	business, err := s.businesses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.businesses.UsersOf(ctx, business.ID)
	if err != nil {
		return nil, err
	}

	resp := ToBusinessResponse(business)
	resp.Users = make([]UserResponse, len(users))
	for i := range users {
		resp.Users[i] = ToUserResponse(&users[i])
	}
	return &resp, nil
}

// ListBusinesses returns a page of businesses and the total count.
func (s *BusinessService) ListBusinesses(ctx context.Context, offset, limit int) ([]BusinessResponse, int64, error) {
	businesses, total, err := s.businesses.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BusinessResponse, len(businesses))
	for i := range businesses {
		out[i] = ToBusinessResponse(&businesses[i])
	}
	return out, total, nil
}

// ListCurrencies returns the supported currencies.
func (s *BusinessService) ListCurrencies(ctx context.Context) ([]CurrencyResponse, error) {
	currencies, err := s.currencies.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CurrencyResponse, len(currencies))
	for i, c := range currencies {
		out[i] = CurrencyResponse{Code: c.Code, Name: c.Name, Symbol: c.Symbol}
	}
	return out, nil
}

func (s *BusinessService) newTenantID(ctx context.Context, name string) (string, error) {
	for attempt := 0; attempt < maxIdentifierAttempts; attempt++ {
		id, err := s.generateID(name)
		if err != nil {
			return "", err
		}
		exists, err := s.businesses.ExistsByTenantID(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		s.logger.Debug("Tenant identifier collision, retrying", zap.String("tenant_id", id))
	}
	return "", errors.New("could not generate a unique tenant identifier")
}
