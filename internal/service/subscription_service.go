package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/entitlement"
	"github.com/kursadbilgin/campaign-engine/internal/observability"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

const (
	expiryNoticeWindow = 7 * 24 * time.Hour
	noticeRepeatGuard  = 2 * 24 * time.Hour
)

// SweepResult aggregates one expiry sweep run. Per-tenant failures land in
// Errors; they never stop the sweep.
type SweepResult struct {
	ExpiringCount int      `json:"expiringCount"`
	ExpiredCount  int      `json:"expiredCount"`
	RenewedCount  int      `json:"renewedCount"`
	Errors        []string `json:"errors,omitempty"`
}

// PlanChange describes the outcome of a manual assign.
type PlanChange string

const (
	PlanChangeSame      PlanChange = "SAME"
	PlanChangeUpgrade   PlanChange = "UPGRADE"
	PlanChangeDowngrade PlanChange = "DOWNGRADE"
)

// SubscriptionService runs the entitlement state machine: the periodic
// expiry sweep plus the manual assign and renew operations. Every tenant
// mutation goes through the repository's row-locked UpdateSubscription, so a
// sweep and a manual change on the same tenant serialize instead of
// interleaving.
type SubscriptionService struct {
	tenants repository.TenantRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewSubscriptionService(tenants repository.TenantRepository, logger *zap.Logger, metrics *observability.Metrics) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubscriptionService{
		tenants: tenants,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Sweep walks tenants approaching or past expiry. Tenants expiring within 7
// days get at most one warning per 2 days; tenants past expiry either ride
// auto-renew or are downgraded to the lowest plan.
func (s *SubscriptionService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	result := &SweepResult{}

	expiring, err := s.tenants.FindExpiringWithin(ctx, now, expiryNoticeWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring tenants: %w", err)
	}

	for i := range expiring {
		tenant := expiring[i]
		if tenant.LastExpiryNoticeAt != nil && now.Sub(*tenant.LastExpiryNoticeAt) < noticeRepeatGuard {
			continue
		}

		noticed, err := s.sendExpiryNotice(ctx, tenant.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("tenant %s: expiry notice: %v", tenant.ID, err))
			continue
		}
		if !noticed {
			// The under-lock re-check no-opped: a concurrent sweep stamped the
			// notice first, or a renew pushed the expiry out of the window.
			continue
		}
		result.ExpiringCount++
		s.countSweep("expiring")
	}

	pastExpiry, err := s.tenants.FindPastExpiry(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired tenants: %w", err)
	}

	for i := range pastExpiry {
		tenant := pastExpiry[i]
		if tenant.Plan == domain.LowestPlan {
			continue
		}

		if tenant.AutoRenew && tenant.RecurringPaymentRef != nil {
			// The payment provider's webhook extends the expiry out of band.
			result.RenewedCount++
			s.countSweep("renewed")
			continue
		}

		if err := s.expireTenant(ctx, tenant.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("tenant %s: expire: %v", tenant.ID, err))
			continue
		}
		result.ExpiredCount++
		s.countSweep("expired")
	}

	s.logger.Info("subscription sweep finished",
		zap.Int("expiring", result.ExpiringCount),
		zap.Int("expired", result.ExpiredCount),
		zap.Int("renewed", result.RenewedCount),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// sendExpiryNotice stamps the notice guard and queues the warning. It reports
// whether a notice was actually written so the sweep only counts real ones.
func (s *SubscriptionService) sendExpiryNotice(ctx context.Context, tenantID string) (bool, error) {
	noticed := false
	_, err := s.tenants.UpdateSubscription(ctx, tenantID, func(t *domain.Tenant) (*repository.SideEffects, error) {
		now := s.now()

		// Re-check under the lock: a concurrent renew may have pushed the
		// expiry out of the window, or a parallel sweep may have stamped the
		// notice already.
		if !t.ExpiresWithin(now, expiryNoticeWindow) {
			return nil, nil
		}
		if t.LastExpiryNoticeAt != nil && now.Sub(*t.LastExpiryNoticeAt) < noticeRepeatGuard {
			return nil, nil
		}

		noticed = true
		t.LastExpiryNoticeAt = &now

		expiry := t.SubscriptionExpiresAt.Format("2006-01-02")
		title := "Subscription expiring soon"
		body := fmt.Sprintf("The %s subscription for %s expires on %s.", t.Plan, t.Name, expiry)

		return &repository.SideEffects{
			Audits: []domain.AuditLogEntry{
				repository.NewAuditEntry(t.ID, nil, domain.ActionExpiryNoticeSent, "tenant", t.ID, nil,
					repository.AuditPayload(map[string]string{"expiresAt": expiry})),
			},
			Notifications: []domain.TenantNotification{{
				ID:       uuid.NewString(),
				TenantID: t.ID,
				Kind:     domain.KindExpiryWarning,
				Title:    title,
				Body:     body,
			}},
			Outbox: []domain.OutboxEvent{{
				ID:         uuid.NewString(),
				TenantID:   t.ID,
				Kind:       domain.KindExpiryWarning,
				Subject:    title,
				Body:       body,
				Recipients: t.AdminEmails,
				Status:     domain.OutboxPending,
			}},
		}, nil
	})
	if err != nil {
		return false, err
	}
	return noticed, nil
}

func (s *SubscriptionService) expireTenant(ctx context.Context, tenantID string) error {
	var previousPlan domain.Plan

	_, err := s.tenants.UpdateSubscription(ctx, tenantID, func(t *domain.Tenant) (*repository.SideEffects, error) {
		now := s.now()

		if !t.IsPastExpiry(now) || t.Plan == domain.LowestPlan {
			return nil, nil
		}

		previousPlan = t.Plan
		t.Plan = domain.LowestPlan
		t.SubscriptionStatus = domain.SubscriptionExpired
		t.SubscriptionExpiresAt = nil
		t.LastExpiryNoticeAt = nil

		title := "Subscription expired"
		body := fmt.Sprintf("The %s subscription for %s expired and the account moved to the %s plan.", previousPlan, t.Name, domain.LowestPlan)
		before := repository.AuditPayload(map[string]string{"plan": previousPlan.String()})
		after := repository.AuditPayload(map[string]string{
			"plan":   domain.LowestPlan.String(),
			"status": domain.SubscriptionExpired.String(),
		})

		return &repository.SideEffects{
			Audits: []domain.AuditLogEntry{
				repository.NewAuditEntry(t.ID, nil, domain.ActionPlanExpired, "tenant", t.ID, before, after),
			},
			Notifications: []domain.TenantNotification{{
				ID:       uuid.NewString(),
				TenantID: t.ID,
				Kind:     domain.KindSubscriptionExpired,
				Title:    title,
				Body:     body,
			}},
			Outbox: []domain.OutboxEvent{{
				ID:         uuid.NewString(),
				TenantID:   t.ID,
				Kind:       domain.KindSubscriptionExpired,
				Subject:    title,
				Body:       body,
				Recipients: t.AdminEmails,
				Status:     domain.OutboxPending,
			}},
		}, nil
	})
	if err != nil {
		return err
	}

	if previousPlan != "" {
		// Platform-level alert: an expiry downgrade is a churn signal the
		// operators want to see, not just the tenant.
		s.logger.Warn("tenant subscription expired",
			zap.String("tenantId", tenantID),
			zap.String("previousPlan", previousPlan.String()),
		)
	}

	return nil
}

// Assign sets a tenant's plan from a manual operator action. It always
// reactivates the subscription, even for a previously expired tenant.
func (s *SubscriptionService) Assign(ctx context.Context, actor domain.Actor, tenantID string, plan domain.Plan, durationMonths *int, notes string) (*domain.Tenant, error) {
	if !entitlement.HasPermission(actor.Role, entitlement.PermPlanManage) {
		return nil, fmt.Errorf("%w: role %s may not manage plans", domain.ErrUnauthorized, actor.Role)
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: invalid plan %q", domain.ErrValidation, plan)
	}
	if durationMonths != nil && *durationMonths < 1 {
		return nil, fmt.Errorf("%w: duration must be at least one month", domain.ErrValidation)
	}

	var change PlanChange

	updated, err := s.tenants.UpdateSubscription(ctx, tenantID, func(t *domain.Tenant) (*repository.SideEffects, error) {
		now := s.now()
		previousPlan := t.Plan

		switch {
		case plan.Rank() > previousPlan.Rank():
			change = PlanChangeUpgrade
		case plan.Rank() < previousPlan.Rank():
			change = PlanChangeDowngrade
		default:
			change = PlanChangeSame
		}

		t.Plan = plan
		t.SubscriptionStatus = domain.SubscriptionActive
		t.SubscriptionStartsAt = &now
		t.LastExpiryNoticeAt = nil
		if durationMonths != nil {
			expiry := now.AddDate(0, *durationMonths, 0)
			t.SubscriptionExpiresAt = &expiry
		} else {
			t.SubscriptionExpiresAt = nil
		}

		title := fmt.Sprintf("Plan set to %s", plan)
		body := fmt.Sprintf("The subscription for %s is now %s.", t.Name, plan)
		if notes != "" {
			body += " " + notes
		}
		before := repository.AuditPayload(map[string]string{"plan": previousPlan.String()})
		after := repository.AuditPayload(map[string]string{
			"plan":   plan.String(),
			"change": string(change),
		})

		return &repository.SideEffects{
			Audits: []domain.AuditLogEntry{
				repository.NewAuditEntry(t.ID, &actor.UserID, domain.ActionPlanAssigned, "tenant", t.ID, before, after),
			},
			Notifications: []domain.TenantNotification{{
				ID:       uuid.NewString(),
				TenantID: t.ID,
				Kind:     domain.KindSubscriptionAssigned,
				Title:    title,
				Body:     body,
			}},
			Outbox: []domain.OutboxEvent{{
				ID:         uuid.NewString(),
				TenantID:   t.ID,
				Kind:       domain.KindSubscriptionAssigned,
				Subject:    title,
				Body:       body,
				Recipients: t.AdminEmails,
				Status:     domain.OutboxPending,
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan assigned",
		zap.String("tenantId", tenantID),
		zap.String("plan", plan.String()),
		zap.String("change", string(change)),
		zap.String("actorId", actor.UserID),
	)

	return updated, nil
}

// Renew extends a subscription from max(now, current expiry): unexpired time
// is never lost, lapsed tenants restart from now.
func (s *SubscriptionService) Renew(ctx context.Context, actor domain.Actor, tenantID string, durationMonths int) (*domain.Tenant, error) {
	if !entitlement.HasPermission(actor.Role, entitlement.PermPlanManage) {
		return nil, fmt.Errorf("%w: role %s may not manage plans", domain.ErrUnauthorized, actor.Role)
	}
	if durationMonths < 1 {
		return nil, fmt.Errorf("%w: duration must be at least one month", domain.ErrValidation)
	}

	updated, err := s.tenants.UpdateSubscription(ctx, tenantID, func(t *domain.Tenant) (*repository.SideEffects, error) {
		now := s.now()

		base := now
		if t.SubscriptionExpiresAt != nil && t.SubscriptionExpiresAt.After(now) {
			base = *t.SubscriptionExpiresAt
		}
		expiry := base.AddDate(0, durationMonths, 0)

		t.SubscriptionStatus = domain.SubscriptionActive
		t.SubscriptionExpiresAt = &expiry
		t.LastExpiryNoticeAt = nil

		title := "Subscription renewed"
		body := fmt.Sprintf("The %s subscription for %s now runs until %s.", t.Plan, t.Name, expiry.Format("2006-01-02"))
		after := repository.AuditPayload(map[string]any{
			"expiresAt":      expiry.Format(time.RFC3339),
			"durationMonths": durationMonths,
		})

		return &repository.SideEffects{
			Audits: []domain.AuditLogEntry{
				repository.NewAuditEntry(t.ID, &actor.UserID, domain.ActionPlanRenewed, "tenant", t.ID, nil, after),
			},
			Notifications: []domain.TenantNotification{{
				ID:       uuid.NewString(),
				TenantID: t.ID,
				Kind:     domain.KindSubscriptionRenewed,
				Title:    title,
				Body:     body,
			}},
			Outbox: []domain.OutboxEvent{{
				ID:         uuid.NewString(),
				TenantID:   t.ID,
				Kind:       domain.KindSubscriptionRenewed,
				Subject:    title,
				Body:       body,
				Recipients: t.AdminEmails,
				Status:     domain.OutboxPending,
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription renewed",
		zap.String("tenantId", tenantID),
		zap.Int("durationMonths", durationMonths),
	)

	return updated, nil
}

func (s *SubscriptionService) countSweep(result string) {
	if s.metrics != nil {
		s.metrics.IncSweepResult(result)
	}
}
