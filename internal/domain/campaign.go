package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery medium of a campaign.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelBoth  Channel = "BOTH"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelBoth:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Legs expands a campaign channel into the concrete delivery legs.
// BOTH attempts EMAIL and SMS independently per recipient.
func (c Channel) Legs() []Channel {
	switch c {
	case ChannelBoth:
		return []Channel{ChannelEmail, ChannelSMS}
	case ChannelEmail, ChannelSMS:
		return []Channel{c}
	}
	return nil
}

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignSent      CampaignStatus = "SENT"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignSent:
		return true
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// SendableStatuses are the only states a send may start from. SENDING and
// SENT requests are rejected outright, never resumed.
var SendableStatuses = []CampaignStatus{CampaignDraft, CampaignScheduled}

// Campaign is one bulk send of per-channel content to a filtered contact segment.
type Campaign struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	TenantID       string         `gorm:"type:uuid;not null"`
	Name           string         `gorm:"type:varchar(255);not null"`
	Channel        Channel        `gorm:"type:varchar(10);not null"`
	Status         CampaignStatus `gorm:"type:varchar(20);not null"`
	SegmentFilter  SegmentFilter  `gorm:"type:jsonb;serializer:json"`
	EmailSubject   string         `gorm:"type:varchar(500)"`
	EmailBody      string         `gorm:"type:text"`
	SMSBody        string         `gorm:"type:text;column:sms_body"`
	SenderIdentity string         `gorm:"type:varchar(255)"`
	RecipientCount int            `gorm:"not null;default:0"`
	TotalSent      int            `gorm:"not null;default:0"`
	TotalFailed    int            `gorm:"not null;default:0"`
	SentAt         *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanSend reports whether a send may start from the current status.
func (c *Campaign) CanSend() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// ContentFor returns the body to deliver on one leg.
func (c *Campaign) ContentFor(leg Channel) string {
	if leg == ChannelSMS {
		return c.SMSBody
	}
	return c.EmailBody
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if !c.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, c.Channel)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, c.Status)
	}

	for _, leg := range c.Channel.Legs() {
		switch leg {
		case ChannelEmail:
			if strings.TrimSpace(c.EmailBody) == "" {
				return fmt.Errorf("%w: email body is required for channel %s", ErrValidation, c.Channel)
			}
		case ChannelSMS:
			if strings.TrimSpace(c.SMSBody) == "" {
				return fmt.Errorf("%w: sms body is required for channel %s", ErrValidation, c.Channel)
			}
		}
	}

	return nil
}
