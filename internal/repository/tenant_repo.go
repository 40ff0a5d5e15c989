package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type TenantRepository interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	FindExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.Tenant, error)
	FindPastExpiry(ctx context.Context, now time.Time) ([]domain.Tenant, error)
	UpdateSubscription(ctx context.Context, id string, apply func(t *domain.Tenant) (*SideEffects, error)) (*domain.Tenant, error)
}

type GormTenantRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormTenantRepo(db *gorm.DB) *GormTenantRepo {
	return &GormTenantRepo{db: db, now: time.Now}
}

func (r *GormTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	model := tenantModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if t != nil {
		*t = *tenantModelToDomain(model)
	}
	return nil
}

func (r *GormTenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var model TenantModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tenantModelToDomain(&model), nil
}

// FindExpiringWithin lists active tenants whose subscription expires inside
// the window starting at now.
func (r *GormTenantRepo) FindExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.Tenant, error) {
	var models []TenantModel
	err := r.db.WithContext(ctx).
		Where("subscription_status = ?", domain.SubscriptionActive).
		Where("subscription_expires_at > ? AND subscription_expires_at <= ?", now, now.Add(window)).
		Order("subscription_expires_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return tenantModelsToDomain(models), nil
}

// FindPastExpiry lists active tenants whose subscription expiry is behind now.
func (r *GormTenantRepo) FindPastExpiry(ctx context.Context, now time.Time) ([]domain.Tenant, error) {
	var models []TenantModel
	err := r.db.WithContext(ctx).
		Where("subscription_status = ?", domain.SubscriptionActive).
		Where("subscription_expires_at < ?", now).
		Order("subscription_expires_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return tenantModelsToDomain(models), nil
}

// UpdateSubscription mutates a tenant's subscription fields under a row lock.
// The row is locked FOR UPDATE before apply runs, so a sweep downgrading the
// tenant and an operator renewing it cannot interleave: whichever transaction
// wins sees the row first and the other observes its committed result.
// Side effects returned by apply are written in the same transaction.
func (r *GormTenantRepo) UpdateSubscription(ctx context.Context, id string, apply func(t *domain.Tenant) (*SideEffects, error)) (*domain.Tenant, error) {
	var updated *domain.Tenant

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TenantModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		tenant := tenantModelToDomain(&model)
		fx, err := apply(tenant)
		if err != nil {
			return err
		}

		now := r.now()
		tenant.UpdatedAt = now
		if err := tx.Save(tenantModelFromDomain(tenant)).Error; err != nil {
			return err
		}
		if err := appendSideEffects(tx, fx, now); err != nil {
			return err
		}

		updated = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func tenantModelsToDomain(models []TenantModel) []domain.Tenant {
	tenants := make([]domain.Tenant, 0, len(models))
	for i := range models {
		tenants = append(tenants, *tenantModelToDomain(&models[i]))
	}
	return tenants
}
