package domain

import (
	"fmt"
	"strings"
	"time"
)

// TenantCredential stores a tenant's provider credentials for one channel,
// encrypted at rest. The ciphertext is only decrypted immediately before a
// gateway call.
type TenantCredential struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	TenantID   string  `gorm:"type:uuid;not null"`
	Channel    Channel `gorm:"type:varchar(10);not null"`
	Ciphertext string  `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *TenantCredential) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if c.Channel != ChannelEmail && c.Channel != ChannelSMS {
		return fmt.Errorf("%w: credential channel must be a single leg, got %q", ErrValidation, c.Channel)
	}
	if strings.TrimSpace(c.Ciphertext) == "" {
		return fmt.Errorf("%w: ciphertext is required", ErrValidation)
	}
	return nil
}
