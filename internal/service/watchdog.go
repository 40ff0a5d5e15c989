package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/observability"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

const (
	defaultWatchdogInterval = 5 * time.Minute
	defaultStuckAfter       = 30 * time.Minute
	defaultWatchdogLimit    = 100
)

// Watchdog scans for campaigns stuck in SENDING after a crash mid-dispatch.
// It alerts and audits but never repairs state: how many recipients were
// actually reached is unknowable here, so flipping the status would fabricate
// a result.
type Watchdog struct {
	campaigns  repository.CampaignRepository
	audits     repository.AuditRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	stuckAfter time.Duration
	limit      int
	now        func() time.Time

	// reported de-duplicates alerts per campaign within process lifetime.
	reported map[string]bool
}

func NewWatchdog(
	campaigns repository.CampaignRepository,
	audits repository.AuditRepository,
	interval time.Duration,
	stuckAfter time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Watchdog, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if interval <= 0 {
		interval = defaultWatchdogInterval
	}
	if stuckAfter <= 0 {
		stuckAfter = defaultStuckAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watchdog{
		campaigns:  campaigns,
		audits:     audits,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
		stuckAfter: stuckAfter,
		limit:      defaultWatchdogLimit,
		now:        time.Now,
		reported:   make(map[string]bool),
	}, nil
}

func (w *Watchdog) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("watchdog scan failed", zap.Error(err))
			}
		}
	}
}

// Scan reports campaigns SENDING for longer than the threshold.
func (w *Watchdog) Scan(ctx context.Context) error {
	cutoff := w.now().Add(-w.stuckAfter)

	stuck, err := w.campaigns.FindStuckSending(ctx, cutoff, w.limit)
	if err != nil {
		return fmt.Errorf("failed to scan for stuck campaigns: %w", err)
	}

	for i := range stuck {
		campaign := stuck[i]
		if w.reported[campaign.ID] {
			continue
		}
		w.reported[campaign.ID] = true

		w.logger.Error("campaign stuck in SENDING",
			zap.String("campaignId", campaign.ID),
			zap.String("tenantId", campaign.TenantID),
			zap.Timep("sentAt", campaign.SentAt),
		)
		if w.metrics != nil {
			w.metrics.IncStuckCampaign()
		}

		detail := repository.AuditPayload(map[string]string{
			"sendingSince": campaign.SentAt.Format(time.RFC3339),
		})
		fx := &repository.SideEffects{
			Audits: []domain.AuditLogEntry{
				repository.NewAuditEntry(campaign.TenantID, nil, domain.ActionCampaignStuck, "campaign", campaign.ID, nil, detail),
			},
			Notifications: []domain.TenantNotification{{
				TenantID: campaign.TenantID,
				Kind:     domain.KindCampaignStuckDetected,
				Title:    fmt.Sprintf("Campaign %q needs attention", campaign.Name),
				Body:     "The campaign has been dispatching for an unusually long time. Support has been alerted.",
			}},
		}
		if err := w.audits.Append(ctx, fx); err != nil {
			w.logger.Error("failed to audit stuck campaign",
				zap.String("campaignId", campaign.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}
