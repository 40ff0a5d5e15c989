package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type GormCredentialRepo struct {
	db *gorm.DB
}

func NewGormCredentialRepo(db *gorm.DB) *GormCredentialRepo {
	return &GormCredentialRepo{db: db}
}

func (r *GormCredentialRepo) GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error) {
	var cred domain.TenantCredential
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ?", tenantID, channel).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Upsert replaces the stored ciphertext for the tenant/channel pair.
func (r *GormCredentialRepo) Upsert(ctx context.Context, cred *domain.TenantCredential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "channel"}},
			DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "updated_at"}),
		}).
		Create(cred).Error
}
