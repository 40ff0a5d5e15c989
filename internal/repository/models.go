package repository

import (
	"time"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

// TenantModel is the persistence model for the tenants table. The per-channel
// credit columns are the balances the ledger's conditional decrement runs
// against.
type TenantModel struct {
	ID                    string                    `gorm:"type:uuid;primaryKey"`
	Name                  string                    `gorm:"type:varchar(255);not null"`
	Plan                  domain.Plan               `gorm:"type:varchar(20);not null"`
	SubscriptionStatus    domain.SubscriptionStatus `gorm:"type:varchar(20);not null"`
	EmailCredits          int64                     `gorm:"not null;default:0"`
	SMSCredits            int64                     `gorm:"not null;default:0;column:sms_credits"`
	SubscriptionStartsAt  *time.Time
	SubscriptionExpiresAt *time.Time
	LastExpiryNoticeAt    *time.Time
	AutoRenew             bool    `gorm:"not null;default:false"`
	RecurringPaymentRef   *string `gorm:"type:varchar(255)"`
	AdminEmails           string  `gorm:"type:text;not null;default:''"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (TenantModel) TableName() string {
	return "tenants"
}

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	TenantID       string                `gorm:"type:uuid;not null"`
	Name           string                `gorm:"type:varchar(255);not null"`
	Channel        domain.Channel        `gorm:"type:varchar(10);not null"`
	Status         domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	SegmentFilter  domain.SegmentFilter  `gorm:"type:jsonb;serializer:json"`
	EmailSubject   string                `gorm:"type:varchar(500)"`
	EmailBody      string                `gorm:"type:text"`
	SMSBody        string                `gorm:"type:text;column:sms_body"`
	SenderIdentity string                `gorm:"type:varchar(255)"`
	RecipientCount int                   `gorm:"not null;default:0"`
	TotalSent      int                   `gorm:"not null;default:0"`
	TotalFailed    int                   `gorm:"not null;default:0"`
	SentAt         *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// ContactModel is the persistence model for the contacts table.
type ContactModel struct {
	ID           string               `gorm:"type:uuid;primaryKey"`
	TenantID     string               `gorm:"type:uuid;not null"`
	FirstName    string               `gorm:"type:varchar(255)"`
	LastName     string               `gorm:"type:varchar(255)"`
	Email        *string              `gorm:"type:varchar(255)"`
	Phone        *string              `gorm:"type:varchar(32)"`
	EmailConsent bool                 `gorm:"not null;default:false"`
	SMSConsent   bool                 `gorm:"not null;default:false;column:sms_consent"`
	Status       domain.ContactStatus `gorm:"type:varchar(20);not null"`
	Tags         string               `gorm:"type:text;not null;default:''"`
	TotalDonated int64                `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ContactModel) TableName() string {
	return "contacts"
}

func tenantModelFromDomain(t *domain.Tenant) *TenantModel {
	if t == nil {
		return nil
	}

	return &TenantModel{
		ID:                    t.ID,
		Name:                  t.Name,
		Plan:                  t.Plan,
		SubscriptionStatus:    t.SubscriptionStatus,
		EmailCredits:          t.EmailCredits,
		SMSCredits:            t.SMSCredits,
		SubscriptionStartsAt:  t.SubscriptionStartsAt,
		SubscriptionExpiresAt: t.SubscriptionExpiresAt,
		LastExpiryNoticeAt:    t.LastExpiryNoticeAt,
		AutoRenew:             t.AutoRenew,
		RecurringPaymentRef:   t.RecurringPaymentRef,
		AdminEmails:           t.AdminEmails,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func tenantModelToDomain(m *TenantModel) *domain.Tenant {
	if m == nil {
		return nil
	}

	return &domain.Tenant{
		ID:                    m.ID,
		Name:                  m.Name,
		Plan:                  m.Plan,
		SubscriptionStatus:    m.SubscriptionStatus,
		EmailCredits:          m.EmailCredits,
		SMSCredits:            m.SMSCredits,
		SubscriptionStartsAt:  m.SubscriptionStartsAt,
		SubscriptionExpiresAt: m.SubscriptionExpiresAt,
		LastExpiryNoticeAt:    m.LastExpiryNoticeAt,
		AutoRenew:             m.AutoRenew,
		RecurringPaymentRef:   m.RecurringPaymentRef,
		AdminEmails:           m.AdminEmails,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Name:           m.Name,
		Channel:        m.Channel,
		Status:         m.Status,
		SegmentFilter:  m.SegmentFilter,
		EmailSubject:   m.EmailSubject,
		EmailBody:      m.EmailBody,
		SMSBody:        m.SMSBody,
		SenderIdentity: m.SenderIdentity,
		RecipientCount: m.RecipientCount,
		TotalSent:      m.TotalSent,
		TotalFailed:    m.TotalFailed,
		SentAt:         m.SentAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:             c.ID,
		TenantID:       c.TenantID,
		Name:           c.Name,
		Channel:        c.Channel,
		Status:         c.Status,
		SegmentFilter:  c.SegmentFilter,
		EmailSubject:   c.EmailSubject,
		EmailBody:      c.EmailBody,
		SMSBody:        c.SMSBody,
		SenderIdentity: c.SenderIdentity,
		RecipientCount: c.RecipientCount,
		TotalSent:      c.TotalSent,
		TotalFailed:    c.TotalFailed,
		SentAt:         c.SentAt,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func contactModelToDomain(m *ContactModel) *domain.Contact {
	if m == nil {
		return nil
	}

	return &domain.Contact{
		ID:           m.ID,
		TenantID:     m.TenantID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		Phone:        m.Phone,
		EmailConsent: m.EmailConsent,
		SMSConsent:   m.SMSConsent,
		Status:       m.Status,
		Tags:         m.Tags,
		TotalDonated: m.TotalDonated,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
