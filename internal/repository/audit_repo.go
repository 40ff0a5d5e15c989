package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type AuditRepository interface {
	Append(ctx context.Context, fx *SideEffects) error
	ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.AuditLogEntry, error)
	ListNotifications(ctx context.Context, tenantID string, limit int) ([]domain.TenantNotification, error)
}

type OutboxRepository interface {
	FindPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error
}

type GormAuditRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormAuditRepo(db *gorm.DB) *GormAuditRepo {
	return &GormAuditRepo{db: db, now: time.Now}
}

// Append writes audit/notification/outbox rows outside of any caller
// transaction. Mutating repositories take a SideEffects argument instead when
// the rows must commit with a state change.
func (r *GormAuditRepo) Append(ctx context.Context, fx *SideEffects) error {
	if fx.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendSideEffects(tx, fx, r.now())
	})
}

func (r *GormAuditRepo) ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.AuditLogEntry, error) {
	if limit < 1 {
		limit = 50
	}

	var entries []domain.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormAuditRepo) ListNotifications(ctx context.Context, tenantID string, limit int) ([]domain.TenantNotification, error) {
	if limit < 1 {
		limit = 50
	}

	var notifications []domain.TenantNotification
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

type GormOutboxRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormOutboxRepo(db *gorm.DB) *GormOutboxRepo {
	return &GormOutboxRepo{db: db, now: time.Now}
}

func (r *GormOutboxRepo) FindPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit < 1 {
		limit = 100
	}

	var events []domain.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.OutboxPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormOutboxRepo) GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *GormOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ? AND status = ?", id, domain.OutboxPending).
		Updates(map[string]any{
			"status":        domain.OutboxPublished,
			"published_at":  publishedAt,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkFailed records a publish failure. The event stays PENDING for retry
// until maxAttempts is reached, then parks as FAILED.
func (r *GormOutboxRepo) MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event domain.OutboxEvent
		err := tx.First(&event, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		status := domain.OutboxPending
		if event.AttemptCount+1 >= maxAttempts {
			status = domain.OutboxFailed
		}

		return tx.
			Model(&domain.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":        status,
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"last_error":    cause,
				"updated_at":    r.now(),
			}).Error
	})
}

// NewAuditEntry builds an audit row with a fresh id so callers can put it in
// a SideEffects batch without repeating the boilerplate.
func NewAuditEntry(tenantID string, actorID *string, action, entityType, entityID string, before, after *string) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
	}
}
