package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	CreateRecipient(ctx context.Context, rec *domain.MessageRecipient) error
	ListRecipients(ctx context.Context, messageID string) ([]domain.MessageRecipient, error)
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GormMessageRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  domain.MessageSent,
			"sent_at": sentAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormMessageRepo) CreateRecipient(ctx context.Context, rec *domain.MessageRecipient) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormMessageRepo) ListRecipients(ctx context.Context, messageID string) ([]domain.MessageRecipient, error) {
	var recipients []domain.MessageRecipient
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}
