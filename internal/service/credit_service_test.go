package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

func TestCreditBalances(t *testing.T) {
	t.Parallel()

	tenants := &fakeTenantRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Tenant, error) {
			return testTenant(domain.PlanPro, 120, 45), nil
		},
	}

	svc := NewCreditService(tenants, &fakeCreditRepo{}, nil)

	balances, err := svc.Balances(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if balances.EmailCredits != 120 || balances.SMSCredits != 45 {
		t.Fatalf("balances = %+v", balances)
	}
}

func TestCreditTopupWritesLedgerAndAudit(t *testing.T) {
	t.Parallel()

	var gotFx *repository.SideEffects
	credits := &fakeCreditRepo{
		topupFn: func(ctx context.Context, tenantID string, channel domain.Channel, amount int64, description string, fx *repository.SideEffects) (*domain.CreditTransaction, error) {
			gotFx = fx
			return &domain.CreditTransaction{Amount: amount, BalanceAfter: 150}, nil
		},
	}

	svc := NewCreditService(&fakeTenantRepo{}, credits, nil)

	txn, err := svc.Topup(context.Background(), ownerActor(), "tenant-1", domain.ChannelSMS, 50, "invoice 42")
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}
	if txn.BalanceAfter != 150 {
		t.Fatalf("balanceAfter = %d", txn.BalanceAfter)
	}
	if gotFx == nil || len(gotFx.Audits) != 1 || gotFx.Audits[0].Action != domain.ActionCreditsToppedUp {
		t.Fatalf("side effects = %+v, want one topup audit entry", gotFx)
	}
}

func TestCreditTopupValidation(t *testing.T) {
	t.Parallel()

	svc := NewCreditService(&fakeTenantRepo{}, &fakeCreditRepo{}, nil)

	member := ownerActor()
	member.Role = domain.RoleMember
	if _, err := svc.Topup(context.Background(), member, "tenant-1", domain.ChannelEmail, 10, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("member Topup error = %v, want ErrUnauthorized", err)
	}

	if _, err := svc.Topup(context.Background(), ownerActor(), "tenant-1", domain.ChannelBoth, 10, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("BOTH channel Topup error = %v, want ErrValidation", err)
	}
}
