package domain

import (
	"fmt"
	"strings"
	"time"
)

// CreditTransactionType represents the business reason for a ledger row.
type CreditTransactionType string

const (
	CreditTopup      CreditTransactionType = "TOPUP"
	CreditDebit      CreditTransactionType = "DEBIT"
	CreditAdjustment CreditTransactionType = "ADJUSTMENT"
)

func (t CreditTransactionType) String() string { return string(t) }

func (t CreditTransactionType) IsValid() bool {
	switch t {
	case CreditTopup, CreditDebit, CreditAdjustment:
		return true
	}
	return false
}

// CreditTransaction is one append-only ledger row. BalanceAfter always equals
// the prior balance plus Amount; rows are never mutated or deleted.
type CreditTransaction struct {
	ID           string                `gorm:"type:uuid;primaryKey"`
	TenantID     string                `gorm:"type:uuid;not null"`
	Type         CreditTransactionType `gorm:"type:varchar(20);not null"`
	Channel      Channel               `gorm:"type:varchar(10);not null"`
	Amount       int64                 `gorm:"not null"`
	BalanceAfter int64                 `gorm:"not null"`
	CampaignID   *string               `gorm:"type:uuid"`
	Description  string                `gorm:"type:text"`
	CreatedAt    time.Time
}

func (t *CreditTransaction) Validate() error {
	if strings.TrimSpace(t.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: invalid transaction type %q", ErrValidation, t.Type)
	}
	if t.Channel != ChannelEmail && t.Channel != ChannelSMS {
		return fmt.Errorf("%w: ledger channel must be a single leg, got %q", ErrValidation, t.Channel)
	}
	if t.Amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrValidation)
	}
	if t.BalanceAfter < 0 {
		return fmt.Errorf("%w: balance after must not be negative", ErrValidation)
	}
	return nil
}
