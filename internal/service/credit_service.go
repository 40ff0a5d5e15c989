package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/entitlement"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

// CreditBalances are a tenant's prepaid balances per channel.
type CreditBalances struct {
	EmailCredits int64 `json:"emailCredits"`
	SMSCredits   int64 `json:"smsCredits"`
}

// CreditService exposes balance reads and manual top-ups over the ledger.
type CreditService struct {
	tenants repository.TenantRepository
	credits repository.CreditRepository
	logger  *zap.Logger
}

func NewCreditService(tenants repository.TenantRepository, credits repository.CreditRepository, logger *zap.Logger) *CreditService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CreditService{
		tenants: tenants,
		credits: credits,
		logger:  logger,
	}
}

func (s *CreditService) Balances(ctx context.Context, tenantID string) (*CreditBalances, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &CreditBalances{
		EmailCredits: tenant.EmailCredits,
		SMSCredits:   tenant.SMSCredits,
	}, nil
}

// Topup adds prepaid credits on one channel and appends the ledger row and
// audit entry in the same transaction.
func (s *CreditService) Topup(ctx context.Context, actor domain.Actor, tenantID string, channel domain.Channel, amount int64, description string) (*domain.CreditTransaction, error) {
	if !entitlement.HasPermission(actor.Role, entitlement.PermCreditsTopup) {
		return nil, fmt.Errorf("%w: role %s may not top up credits", domain.ErrUnauthorized, actor.Role)
	}
	if channel != domain.ChannelEmail && channel != domain.ChannelSMS {
		return nil, fmt.Errorf("%w: topup channel must be EMAIL or SMS", domain.ErrValidation)
	}

	after := repository.AuditPayload(map[string]any{
		"channel": channel.String(),
		"amount":  amount,
	})
	fx := &repository.SideEffects{
		Audits: []domain.AuditLogEntry{
			repository.NewAuditEntry(tenantID, &actor.UserID, domain.ActionCreditsToppedUp, "tenant", tenantID, nil, after),
		},
	}

	txn, err := s.credits.Topup(ctx, tenantID, channel, amount, description, fx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits topped up",
		zap.String("tenantId", tenantID),
		zap.String("channel", channel.String()),
		zap.Int64("amount", amount),
		zap.Int64("balanceAfter", txn.BalanceAfter),
	)

	return txn, nil
}
