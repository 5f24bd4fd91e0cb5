package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/identity"
	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/pos/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBusinessRepository implements identity.BusinessRepository on the
// master database.
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewGormBusinessRepository creates a new GormBusinessRepository
func NewGormBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// Create stores a business and its owner in one transaction.
func (r *GormBusinessRepository) Create(ctx context.Context, business *identity.Business, owner *identity.BusinessUser) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.BusinessModelFromDomain(business)).Error; err != nil {
			return err
		}
		if owner == nil {
			return nil
		}
		return tx.Create(models.BusinessUserModelFromDomain(owner)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.AlreadyExists("Business tenant or owner email already registered")
	}
	return err
}

// FindByID finds a business by its ID
func (r *GormBusinessRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Business, error) {
	var model models.BusinessModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenantID finds the business owning tenantID
func (r *GormBusinessRepository) FindByTenantID(ctx context.Context, tenantID string) (*identity.Business, error) {
	var model models.BusinessModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByTenantID reports whether any business, active or not, uses tenantID.
func (r *GormBusinessRepository) ExistsByTenantID(ctx context.Context, tenantID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BusinessModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus persists the business status.
func (r *GormBusinessRepository) UpdateStatus(ctx context.Context, business *identity.Business) error {
	result := r.db.WithContext(ctx).Model(&models.BusinessModel{}).
		Where("id = ?", business.ID).
		Updates(map[string]any{
			"status":     business.Status,
			"updated_at": business.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns businesses ordered by creation time, plus the total count.
func (r *GormBusinessRepository) List(ctx context.Context, offset, limit int) ([]identity.Business, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BusinessModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BusinessModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, tenant_id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	businesses := make([]identity.Business, len(rows))
	for i := range rows {
		businesses[i] = *rows[i].ToDomain()
	}
	return businesses, total, nil
}

// AddUser stores a user of an existing business.
func (r *GormBusinessRepository) AddUser(ctx context.Context, user *identity.BusinessUser) error {
	err := r.db.WithContext(ctx).Create(models.BusinessUserModelFromDomain(user)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.AlreadyExists("Email already belongs to a business")
	}
	return err
}

// UsersOf returns the users of a business ordered by email.
func (r *GormBusinessRepository) UsersOf(ctx context.Context, businessID uuid.UUID) ([]identity.BusinessUser, error) {
	var rows []models.BusinessUserModel
	if err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("email ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]identity.BusinessUser, len(rows))
	for i := range rows {
		users[i] = *rows[i].ToDomain()
	}
	return users, nil
}

// ExistsUserByEmail reports whether email belongs to any business.
func (r *GormBusinessRepository) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BusinessUserModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TenantIDForUser returns the tenant of the active business email belongs
// to, or "" when there is none.
func (r *GormBusinessRepository) TenantIDForUser(ctx context.Context, email string) (string, error) {
	var tenantIDs []string
	err := r.db.WithContext(ctx).
		Table("business_users AS u").
		Joins("JOIN businesses AS b ON b.id = u.business_id").
		Where("u.email = ? AND b.status = ?", strings.ToLower(strings.TrimSpace(email)), identity.BusinessStatusActive).
		Limit(1).
		Pluck("b.tenant_id", &tenantIDs).Error
	if err != nil {
		return "", err
	}
	if len(tenantIDs) == 0 {
		return "", nil
	}
	return tenantIDs[0], nil
}

// ListTenantIDs returns the tenant of every business, sorted.
func (r *GormBusinessRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	var tenantIDs []string
	if err := r.db.WithContext(ctx).Model(&models.BusinessModel{}).
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// GormCurrencyRepository implements identity.CurrencyRepository.
type GormCurrencyRepository struct {
	db *gorm.DB
}

// NewGormCurrencyRepository creates a new GormCurrencyRepository
func NewGormCurrencyRepository(db *gorm.DB) *GormCurrencyRepository {
	return &GormCurrencyRepository{db: db}
}

// Exists reports whether code is a known currency.
func (r *GormCurrencyRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CurrencyModel{}).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns all currencies ordered by code.
func (r *GormCurrencyRepository) List(ctx context.Context) ([]identity.Currency, error) {
	var rows []models.CurrencyModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	currencies := make([]identity.Currency, len(rows))
	for i := range rows {
		currencies[i] = rows[i].ToDomain()
	}
	return currencies, nil
}
