package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	MarkSending(ctx context.Context, tenantID, id string, recipientCount int, sentAt time.Time) (bool, error)
	MarkSent(ctx context.Context, tenantID, id string, totalSent, totalFailed int, completedAt time.Time, fx *SideEffects) error
	FindStuckSending(ctx context.Context, sendingSince time.Time, limit int) ([]domain.Campaign, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *campaignModelToDomain(model)
	}
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

// MarkSending claims the campaign for a single dispatch. The transition is a
// conditional update on the sendable statuses, so two concurrent send
// requests cannot both win: the loser sees zero rows affected and gets false.
func (r *GormCampaignRepo) MarkSending(ctx context.Context, tenantID, id string, recipientCount int, sentAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND tenant_id = ? AND status IN ?", id, tenantID, domain.SendableStatuses).
		Updates(map[string]any{
			"status":          domain.CampaignSending,
			"recipient_count": recipientCount,
			"sent_at":         sentAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSent finishes the dispatch, recording totals and writing the caller's
// audit/notification/outbox rows in the same transaction.
func (r *GormCampaignRepo) MarkSent(ctx context.Context, tenantID, id string, totalSent, totalFailed int, completedAt time.Time, fx *SideEffects) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&CampaignModel{}).
			Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, domain.CampaignSending).
			Updates(map[string]any{
				"status":       domain.CampaignSent,
				"total_sent":   totalSent,
				"total_failed": totalFailed,
				"completed_at": completedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrConflict
		}

		return appendSideEffects(tx, fx, completedAt)
	})
}

// FindStuckSending lists campaigns still SENDING whose dispatch started
// before the cutoff.
func (r *GormCampaignRepo) FindStuckSending(ctx context.Context, sendingSince time.Time, limit int) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND sent_at <= ?", domain.CampaignSending, sendingSince).
		Order("sent_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}
