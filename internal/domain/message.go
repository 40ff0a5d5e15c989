package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageStatus represents the state of one dispatch attempt.
type MessageStatus string

const (
	MessageSending MessageStatus = "SENDING"
	MessageSent    MessageStatus = "SENT"
)

func (s MessageStatus) String() string { return string(s) }

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageSending, MessageSent:
		return true
	}
	return false
}

// Message snapshots the content actually delivered by one dispatch.
type Message struct {
	ID           string        `gorm:"type:uuid;primaryKey"`
	CampaignID   string        `gorm:"type:uuid;not null"`
	TenantID     string        `gorm:"type:uuid;not null"`
	Channel      Channel       `gorm:"type:varchar(10);not null"`
	EmailSubject string        `gorm:"type:varchar(500)"`
	EmailBody    string        `gorm:"type:text"`
	SMSBody      string        `gorm:"type:text;column:sms_body"`
	Status       MessageStatus `gorm:"type:varchar(20);not null"`
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecipientStatus represents the outcome of one per-recipient leg.
type RecipientStatus string

const (
	RecipientSent   RecipientStatus = "SENT"
	RecipientFailed RecipientStatus = "FAILED"
)

func (s RecipientStatus) String() string { return string(s) }

func (s RecipientStatus) IsValid() bool {
	switch s {
	case RecipientSent, RecipientFailed:
		return true
	}
	return false
}

// MessageRecipient is one append-only (recipient, leg) attempt record.
type MessageRecipient struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	MessageID string          `gorm:"type:uuid;not null"`
	ContactID string          `gorm:"type:uuid;not null"`
	Channel   Channel         `gorm:"type:varchar(10);not null"`
	Address   string          `gorm:"type:varchar(255);not null"`
	Status    RecipientStatus `gorm:"type:varchar(10);not null"`
	Error     *string         `gorm:"type:text"`
	CreatedAt time.Time
}

func (r *MessageRecipient) Validate() error {
	if strings.TrimSpace(r.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	if r.Channel != ChannelEmail && r.Channel != ChannelSMS {
		return fmt.Errorf("%w: recipient channel must be a single leg, got %q", ErrValidation, r.Channel)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid recipient status %q", ErrValidation, r.Status)
	}
	return nil
}
