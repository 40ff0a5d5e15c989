package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

// tenantStore backs the fake repo with real apply-under-lock semantics so
// the re-check logic inside UpdateSubscription closures is exercised.
type tenantStore struct {
	tenants map[string]*domain.Tenant
	effects []*repository.SideEffects
}

func newTenantStore(tenants ...*domain.Tenant) *tenantStore {
	store := &tenantStore{tenants: make(map[string]*domain.Tenant, len(tenants))}
	for _, t := range tenants {
		store.tenants[t.ID] = t
	}
	return store
}

func (s *tenantStore) repo() *fakeTenantRepo {
	return &fakeTenantRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Tenant, error) {
			t, ok := s.tenants[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			copied := *t
			return &copied, nil
		},
		updateSubscriptionFn: func(ctx context.Context, id string, apply func(t *domain.Tenant) (*repository.SideEffects, error)) (*domain.Tenant, error) {
			t, ok := s.tenants[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			fx, err := apply(t)
			if err != nil {
				return nil, err
			}
			if fx != nil && !fx.IsEmpty() {
				s.effects = append(s.effects, fx)
			}
			copied := *t
			return &copied, nil
		},
	}
}

func (s *tenantStore) auditActions() []string {
	var actions []string
	for _, fx := range s.effects {
		for _, entry := range fx.Audits {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

func expiringTenant(id string, plan domain.Plan, expiresAt time.Time) *domain.Tenant {
	return &domain.Tenant{
		ID:                    id,
		Name:                  "Tenant " + id,
		Plan:                  plan,
		SubscriptionStatus:    domain.SubscriptionActive,
		SubscriptionExpiresAt: &expiresAt,
		AdminEmails:           "admin@" + id + ".org",
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestSweepStampsExpiryNoticeOncePerWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenant := expiringTenant("tenant-elite", domain.PlanElite, now.Add(5*24*time.Hour))

	store := newTenantStore(tenant)
	repo := store.repo()
	repo.findExpiringWithinFn = func(ctx context.Context, at time.Time, window time.Duration) ([]domain.Tenant, error) {
		if tenant.ExpiresWithin(at, window) {
			return []domain.Tenant{*tenant}, nil
		}
		return nil, nil
	}

	svc := NewSubscriptionService(repo, nil, nil)
	svc.now = fixedClock(now)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if result.ExpiringCount != 1 {
		t.Fatalf("expiringCount = %d, want 1", result.ExpiringCount)
	}
	if tenant.LastExpiryNoticeAt == nil || !tenant.LastExpiryNoticeAt.Equal(now) {
		t.Fatalf("lastExpiryNoticeAt = %v, want %v", tenant.LastExpiryNoticeAt, now)
	}
	if len(store.effects) != 1 {
		t.Fatalf("side effect batches = %d, want 1", len(store.effects))
	}
	if kind := store.effects[0].Notifications[0].Kind; kind != domain.KindExpiryWarning {
		t.Fatalf("notification kind = %s, want %s", kind, domain.KindExpiryWarning)
	}
	if len(store.effects[0].Outbox) != 1 {
		t.Fatal("expiry notice should enqueue an outbox event")
	}

	// An hour later the notice is still fresh: no second warning.
	svc.now = fixedClock(now.Add(time.Hour))
	result, err = svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if result.ExpiringCount != 0 {
		t.Fatalf("second sweep expiringCount = %d, want 0", result.ExpiringCount)
	}
	if len(store.effects) != 1 {
		t.Fatalf("second sweep added side effects: %d batches", len(store.effects))
	}
}

func TestSweepNoticeRecheckUnderLock(t *testing.T) {
	t.Parallel()

	// The listing returns a stale row without a notice stamp, but by the time
	// the row lock is taken another sweep has stamped it. No duplicate notice.
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	stamped := now.Add(-time.Hour)
	tenant := expiringTenant("tenant-1", domain.PlanPro, now.Add(3*24*time.Hour))
	tenant.LastExpiryNoticeAt = &stamped

	stale := *tenant
	stale.LastExpiryNoticeAt = nil

	store := newTenantStore(tenant)
	repo := store.repo()
	repo.findExpiringWithinFn = func(ctx context.Context, at time.Time, window time.Duration) ([]domain.Tenant, error) {
		return []domain.Tenant{stale}, nil
	}

	svc := NewSubscriptionService(repo, nil, nil)
	svc.now = fixedClock(now)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(store.effects) != 0 {
		t.Fatal("stale listing must not produce a duplicate notice")
	}
	if result.ExpiringCount != 0 {
		t.Fatalf("expiringCount = %d, want 0 when the re-check no-ops", result.ExpiringCount)
	}
	if !tenant.LastExpiryNoticeAt.Equal(stamped) {
		t.Fatalf("notice stamp moved to %v", tenant.LastExpiryNoticeAt)
	}
}

func TestSweepDowngradesLapsedTenant(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenant := expiringTenant("tenant-pro", domain.PlanPro, now.Add(-24*time.Hour))

	store := newTenantStore(tenant)
	repo := store.repo()
	repo.findPastExpiryFn = func(ctx context.Context, at time.Time) ([]domain.Tenant, error) {
		return []domain.Tenant{*tenant}, nil
	}

	svc := NewSubscriptionService(repo, nil, nil)
	svc.now = fixedClock(now)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.ExpiredCount != 1 {
		t.Fatalf("expiredCount = %d, want 1", result.ExpiredCount)
	}
	if tenant.Plan != domain.LowestPlan {
		t.Fatalf("plan = %s, want %s", tenant.Plan, domain.LowestPlan)
	}
	if tenant.SubscriptionStatus != domain.SubscriptionExpired {
		t.Fatalf("status = %s, want EXPIRED", tenant.SubscriptionStatus)
	}
	if tenant.SubscriptionExpiresAt != nil {
		t.Fatal("expiry should be cleared on downgrade")
	}

	actions := store.auditActions()
	if len(actions) != 1 || actions[0] != domain.ActionPlanExpired {
		t.Fatalf("audit actions = %v, want [%s]", actions, domain.ActionPlanExpired)
	}
	entry := store.effects[0].Audits[0]
	if entry.Before == nil || !strings.Contains(*entry.Before, string(domain.PlanPro)) {
		t.Fatalf("audit before = %v, want previous plan PRO", entry.Before)
	}
	if kind := store.effects[0].Notifications[0].Kind; kind != domain.KindSubscriptionExpired {
		t.Fatalf("notification kind = %s", kind)
	}
}

func TestSweepAutoRenewSkipsDowngrade(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ref := "pm_123"
	tenant := expiringTenant("tenant-auto", domain.PlanElite, now.Add(-time.Hour))
	tenant.AutoRenew = true
	tenant.RecurringPaymentRef = &ref

	store := newTenantStore(tenant)
	repo := store.repo()
	repo.findPastExpiryFn = func(ctx context.Context, at time.Time) ([]domain.Tenant, error) {
		return []domain.Tenant{*tenant}, nil
	}

	svc := NewSubscriptionService(repo, nil, nil)
	svc.now = fixedClock(now)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.RenewedCount != 1 || result.ExpiredCount != 0 {
		t.Fatalf("result = %+v, want 1 renewed 0 expired", result)
	}
	if tenant.Plan != domain.PlanElite {
		t.Fatalf("plan = %s, auto-renew tenant must keep its plan", tenant.Plan)
	}
}

func TestSweepTenantErrorDoesNotAbortTheRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	broken := expiringTenant("tenant-broken", domain.PlanPro, now.Add(-time.Hour))
	healthy := expiringTenant("tenant-healthy", domain.PlanPro, now.Add(-time.Hour))

	store := newTenantStore(healthy)
	repo := store.repo()
	repo.findPastExpiryFn = func(ctx context.Context, at time.Time) ([]domain.Tenant, error) {
		return []domain.Tenant{*broken, *healthy}, nil
	}
	inner := repo.updateSubscriptionFn
	repo.updateSubscriptionFn = func(ctx context.Context, id string, apply func(t *domain.Tenant) (*repository.SideEffects, error)) (*domain.Tenant, error) {
		if id == broken.ID {
			return nil, fmt.Errorf("connection reset")
		}
		return inner(ctx, id, apply)
	}

	svc := NewSubscriptionService(repo, nil, nil)
	svc.now = fixedClock(now)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.ExpiredCount != 1 {
		t.Fatalf("expiredCount = %d, want the healthy tenant expired", result.ExpiredCount)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], broken.ID) {
		t.Fatalf("errors = %v, want one entry for %s", result.Errors, broken.ID)
	}
	if healthy.Plan != domain.LowestPlan {
		t.Fatal("healthy tenant should still be downgraded")
	}
}

func TestAssignUpgradesAndReactivates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenant := expiringTenant("tenant-1", domain.PlanFree, now.Add(-48*time.Hour))
	tenant.SubscriptionStatus = domain.SubscriptionExpired
	tenant.SubscriptionExpiresAt = nil

	store := newTenantStore(tenant)
	svc := NewSubscriptionService(store.repo(), nil, nil)
	svc.now = fixedClock(now)

	months := 12
	updated, err := svc.Assign(context.Background(), ownerActor(), tenant.ID, domain.PlanElite, &months, "annual invoice")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if updated.Plan != domain.PlanElite {
		t.Fatalf("plan = %s, want ELITE", updated.Plan)
	}
	if updated.SubscriptionStatus != domain.SubscriptionActive {
		t.Fatalf("status = %s, want ACTIVE", updated.SubscriptionStatus)
	}
	wantExpiry := now.AddDate(0, 12, 0)
	if updated.SubscriptionExpiresAt == nil || !updated.SubscriptionExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", updated.SubscriptionExpiresAt, wantExpiry)
	}

	entry := store.effects[0].Audits[0]
	if entry.Action != domain.ActionPlanAssigned {
		t.Fatalf("audit action = %s", entry.Action)
	}
	if entry.After == nil || !strings.Contains(*entry.After, string(PlanChangeUpgrade)) {
		t.Fatalf("audit after = %v, want UPGRADE classification", entry.After)
	}
}

func TestAssignWithoutDurationClearsExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenant := expiringTenant("tenant-1", domain.PlanPro, now.Add(30*24*time.Hour))

	store := newTenantStore(tenant)
	svc := NewSubscriptionService(store.repo(), nil, nil)
	svc.now = fixedClock(now)

	updated, err := svc.Assign(context.Background(), ownerActor(), tenant.ID, domain.PlanPro, nil, "")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if updated.SubscriptionExpiresAt != nil {
		t.Fatal("nil duration should clear the expiry")
	}
}

func TestAssignValidation(t *testing.T) {
	t.Parallel()

	svc := NewSubscriptionService(&fakeTenantRepo{}, nil, nil)

	member := ownerActor()
	member.Role = domain.RoleMember
	if _, err := svc.Assign(context.Background(), member, "tenant-1", domain.PlanPro, nil, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("member Assign error = %v, want ErrUnauthorized", err)
	}

	if _, err := svc.Assign(context.Background(), ownerActor(), "tenant-1", domain.Plan("PLATINUM"), nil, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("invalid plan error = %v, want ErrValidation", err)
	}

	zero := 0
	if _, err := svc.Assign(context.Background(), ownerActor(), "tenant-1", domain.PlanPro, &zero, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero duration error = %v, want ErrValidation", err)
	}
}

func TestRenewExtendsFromFutureExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	currentExpiry := now.Add(10 * 24 * time.Hour)
	tenant := expiringTenant("tenant-1", domain.PlanPro, currentExpiry)
	stamped := now.Add(-time.Hour)
	tenant.LastExpiryNoticeAt = &stamped

	store := newTenantStore(tenant)
	svc := NewSubscriptionService(store.repo(), nil, nil)
	svc.now = fixedClock(now)

	updated, err := svc.Renew(context.Background(), ownerActor(), tenant.ID, 1)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}

	// Unexpired time is kept: extension runs from the current expiry, not now.
	wantExpiry := currentExpiry.AddDate(0, 1, 0)
	if updated.SubscriptionExpiresAt == nil || !updated.SubscriptionExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", updated.SubscriptionExpiresAt, wantExpiry)
	}
	if updated.LastExpiryNoticeAt != nil {
		t.Fatal("renew should reset the expiry notice stamp")
	}

	actions := store.auditActions()
	if len(actions) != 1 || actions[0] != domain.ActionPlanRenewed {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestRenewLapsedTenantRestartsFromNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenant := expiringTenant("tenant-1", domain.PlanPro, now.Add(-90*24*time.Hour))
	tenant.SubscriptionStatus = domain.SubscriptionExpired

	store := newTenantStore(tenant)
	svc := NewSubscriptionService(store.repo(), nil, nil)
	svc.now = fixedClock(now)

	updated, err := svc.Renew(context.Background(), ownerActor(), tenant.ID, 3)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}

	wantExpiry := now.AddDate(0, 3, 0)
	if updated.SubscriptionExpiresAt == nil || !updated.SubscriptionExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", updated.SubscriptionExpiresAt, wantExpiry)
	}
	if updated.SubscriptionStatus != domain.SubscriptionActive {
		t.Fatalf("status = %s, want ACTIVE", updated.SubscriptionStatus)
	}
}
