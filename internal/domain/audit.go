package domain

import (
	"fmt"
	"strings"
	"time"
)

// AuditLogEntry is one append-only record of a mutating operation.
type AuditLogEntry struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	TenantID   string  `gorm:"type:uuid;not null"`
	ActorID    *string `gorm:"type:varchar(255)"`
	Action     string  `gorm:"type:varchar(100);not null"`
	EntityType string  `gorm:"type:varchar(50);not null"`
	EntityID   string  `gorm:"type:uuid;not null"`
	Before     *string `gorm:"type:jsonb"`
	After      *string `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (e *AuditLogEntry) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(e.Action) == "" {
		return fmt.Errorf("%w: action is required", ErrValidation)
	}
	return nil
}

// TenantNotification is one in-app notification row.
type TenantNotification struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;not null"`
	Kind      string `gorm:"type:varchar(50);not null"`
	Title     string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text"`
	ReadAt    *time.Time
	CreatedAt time.Time
}

// OutboxStatus represents the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
)

func (s OutboxStatus) String() string { return string(s) }

func (s OutboxStatus) IsValid() bool {
	switch s {
	case OutboxPending, OutboxPublished, OutboxFailed:
		return true
	}
	return false
}

// OutboxEvent is a pending-notification record written in the same unit of
// work as the state change it announces. A separate worker drains it, so a
// crash between the change and the fan-out loses no delivery attempt.
type OutboxEvent struct {
	ID           string       `gorm:"type:uuid;primaryKey"`
	TenantID     string       `gorm:"type:uuid;not null"`
	Kind         string       `gorm:"type:varchar(50);not null"`
	Subject      string       `gorm:"type:varchar(255);not null"`
	Body         string       `gorm:"type:text"`
	Recipients   string       `gorm:"type:text;not null;default:''"`
	Status       OutboxStatus `gorm:"type:varchar(20);not null"`
	AttemptCount int          `gorm:"not null;default:0"`
	LastError    *string      `gorm:"type:text"`
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecipientList splits the stored comma-separated recipient addresses.
func (e *OutboxEvent) RecipientList() []string {
	if strings.TrimSpace(e.Recipients) == "" {
		return nil
	}

	parts := strings.Split(e.Recipients, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Audit action and outbox kind names shared across services.
const (
	ActionCampaignSent        = "campaign.sent"
	ActionCampaignStuck       = "campaign.stuck"
	ActionCreditsDebited      = "credits.debited"
	ActionCreditsToppedUp     = "credits.topped_up"
	ActionPlanAssigned        = "subscription.plan_assigned"
	ActionPlanRenewed         = "subscription.renewed"
	ActionPlanExpired         = "subscription.expired"
	ActionExpiryNoticeSent    = "subscription.expiry_notice"
	KindExpiryWarning         = "subscription_expiry_warning"
	KindSubscriptionExpired   = "subscription_expired"
	KindSubscriptionAssigned  = "subscription_assigned"
	KindSubscriptionRenewed   = "subscription_renewed"
	KindCampaignCompleted     = "campaign_completed"
	KindCampaignStuckDetected = "campaign_stuck"
)
