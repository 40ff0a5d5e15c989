package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type CreditRepository interface {
	Balance(ctx context.Context, tenantID string, channel domain.Channel) (int64, error)
	SufficientFor(ctx context.Context, tenantID string, channel domain.Channel, amount int64) (bool, error)
	Debit(ctx context.Context, tenantID string, channel domain.Channel, amount int64, campaignID *string, description string) (*domain.CreditTransaction, error)
	Topup(ctx context.Context, tenantID string, channel domain.Channel, amount int64, description string, fx *SideEffects) (*domain.CreditTransaction, error)
	ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error)
}

type GormCreditRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormCreditRepo(db *gorm.DB) *GormCreditRepo {
	return &GormCreditRepo{db: db, now: time.Now}
}

func creditColumn(channel domain.Channel) (string, error) {
	switch channel {
	case domain.ChannelEmail:
		return "email_credits", nil
	case domain.ChannelSMS:
		return "sms_credits", nil
	}
	return "", fmt.Errorf("%w: channel %q has no credit balance", domain.ErrValidation, channel)
}

func (r *GormCreditRepo) Balance(ctx context.Context, tenantID string, channel domain.Channel) (int64, error) {
	column, err := creditColumn(channel)
	if err != nil {
		return 0, err
	}

	// Scan never raises ErrRecordNotFound, so a missing tenant has to be
	// detected through RowsAffected or it would read as a zero balance.
	var balance int64
	result := r.db.WithContext(ctx).
		Model(&TenantModel{}).
		Select(column).
		Where("id = ?", tenantID).
		Scan(&balance)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, tenantID)
	}
	return balance, nil
}

func (r *GormCreditRepo) SufficientFor(ctx context.Context, tenantID string, channel domain.Channel, amount int64) (bool, error) {
	balance, err := r.Balance(ctx, tenantID, channel)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit removes credits and appends the matching ledger row in one
// transaction. The decrement is conditional on the balance covering the
// amount, so concurrent debits against the same balance serialize on the row
// and the loser fails with ErrInsufficientCredits instead of overdrawing.
func (r *GormCreditRepo) Debit(ctx context.Context, tenantID string, channel domain.Channel, amount int64, campaignID *string, description string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %d", domain.ErrValidation, amount)
	}
	column, err := creditColumn(channel)
	if err != nil {
		return nil, err
	}

	txn := &domain.CreditTransaction{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Type:        domain.CreditDebit,
		Channel:     channel,
		Amount:      -amount,
		CampaignID:  campaignID,
		Description: description,
		CreatedAt:   r.now(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&TenantModel{}).
			Where(fmt.Sprintf("id = ? AND %s >= ?", column), tenantID, amount).
			Update(column, gorm.Expr(column+" - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s balance below %d", domain.ErrInsufficientCredits, channel, amount)
		}

		var balance int64
		if err := tx.
			Model(&TenantModel{}).
			Select(column).
			Where("id = ?", tenantID).
			Scan(&balance).Error; err != nil {
			return err
		}

		txn.BalanceAfter = balance
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// Topup adds credits, appends the ledger row and any caller side effects in
// one transaction.
func (r *GormCreditRepo) Topup(ctx context.Context, tenantID string, channel domain.Channel, amount int64, description string, fx *SideEffects) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: topup amount must be positive, got %d", domain.ErrValidation, amount)
	}
	column, err := creditColumn(channel)
	if err != nil {
		return nil, err
	}

	now := r.now()
	txn := &domain.CreditTransaction{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Type:        domain.CreditTopup,
		Channel:     channel,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&TenantModel{}).
			Where("id = ?", tenantID).
			Update(column, gorm.Expr(column+" + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		var balance int64
		if err := tx.
			Model(&TenantModel{}).
			Select(column).
			Where("id = ?", tenantID).
			Scan(&balance).Error; err != nil {
			return err
		}

		txn.BalanceAfter = balance
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		return appendSideEffects(tx, fx, now)
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

func (r *GormCreditRepo) ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	if limit < 1 {
		limit = 50
	}

	var txns []domain.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
