package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/entitlement"
	"github.com/kursadbilgin/campaign-engine/internal/observability"
	"github.com/kursadbilgin/campaign-engine/internal/ratelimit"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
	"github.com/kursadbilgin/campaign-engine/internal/sender"
)

const minDispatchConcurrency = 1

// CredentialResolver yields decrypted gateway credentials for one leg.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string, channel domain.Channel) (sender.Credentials, error)
}

// DispatchResult summarizes one campaign send.
type DispatchResult struct {
	CampaignID     string `json:"campaignId"`
	RecipientCount int    `json:"recipientCount"`
	TotalSent      int    `json:"totalSent"`
	TotalFailed    int    `json:"totalFailed"`

	// SkippedChannels lists legs dropped for insufficient credits on a BOTH
	// campaign whose other leg still went out.
	SkippedChannels []ChannelShortfall `json:"skippedChannels,omitempty"`
}

// ChannelShortfall itemizes one leg's credit requirement against its balance.
type ChannelShortfall struct {
	Channel   domain.Channel `json:"channel"`
	Required  int64          `json:"required"`
	Available int64          `json:"available"`
}

// InsufficientCreditsError carries the per-channel breakdown for the API
// response. It wraps domain.ErrInsufficientCredits for classification.
type InsufficientCreditsError struct {
	Shortfalls []ChannelShortfall
}

func (e *InsufficientCreditsError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s required %d available %d", s.Channel, s.Required, s.Available))
	}
	return fmt.Sprintf("%v: %s", domain.ErrInsufficientCredits, strings.Join(parts, "; "))
}

func (e *InsufficientCreditsError) Unwrap() error {
	return domain.ErrInsufficientCredits
}

// DispatchService coordinates a campaign send end to end: eligibility,
// credit checks, the single-flight status claim, the fan-out loop, the
// post-loop debit and the completion bookkeeping.
type DispatchService struct {
	campaigns   repository.CampaignRepository
	contacts    repository.ContactRepository
	credits     repository.CreditRepository
	messages    repository.MessageRepository
	tenants     repository.TenantRepository
	credentials CredentialResolver
	email       sender.EmailSender
	sms         sender.SMSSender
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewDispatchService(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	credits repository.CreditRepository,
	messages repository.MessageRepository,
	tenants repository.TenantRepository,
	credentials CredentialResolver,
	email sender.EmailSender,
	sms sender.SMSSender,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *DispatchService {
	if concurrency < minDispatchConcurrency {
		concurrency = minDispatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		campaigns:   campaigns,
		contacts:    contacts,
		credits:     credits,
		messages:    messages,
		tenants:     tenants,
		credentials: credentials,
		email:       email,
		sms:         sms,
		rateLimiter: rateLimiter,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Send dispatches one campaign. All pre-flight checks run before any state
// changes; the first mutation is the conditional DRAFT/SCHEDULED -> SENDING
// claim, so a rejected request leaves no trace.
func (s *DispatchService) Send(ctx context.Context, actor domain.Actor, campaignID string) (*DispatchResult, error) {
	if !entitlement.HasPermission(actor.Role, entitlement.PermCampaignSend) {
		return nil, fmt.Errorf("%w: role %s may not send campaigns", domain.ErrUnauthorized, actor.Role)
	}

	tenant, err := s.tenants.GetByID(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.GetByID(ctx, actor.TenantID, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanSend() {
		return nil, fmt.Errorf("%w: campaign is %s", domain.ErrConflict, campaign.Status)
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	legs := campaign.Channel.Legs()
	for _, leg := range legs {
		if !entitlement.HasFeature(tenant.Plan, entitlement.FeatureForLeg(leg)) {
			return nil, fmt.Errorf("%w: plan %s does not include %s campaigns", domain.ErrNotEntitled, tenant.Plan, leg)
		}
	}

	segment, err := s.contacts.FindSegment(ctx, tenant.ID, campaign.SegmentFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve segment: %w", err)
	}

	perLeg, eligible := domain.SplitByChannel(segment, campaign.Channel)
	if eligible == 0 {
		return nil, fmt.Errorf("%w: segment resolved to no eligible recipients", domain.ErrValidation)
	}

	// Sufficiency is per leg: on a BOTH campaign a short leg is dropped while
	// the funded leg proceeds. Only when no leg is funded is the whole send
	// rejected, with the itemized breakdown.
	legs, shortfalls, err := s.checkCredits(ctx, tenant.ID, legs, perLeg)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		for _, sf := range shortfalls {
			delete(perLeg, sf.Channel)
			s.logger.Warn("leg skipped for insufficient credits",
				zap.String("campaignId", campaign.ID),
				zap.String("channel", sf.Channel.String()),
				zap.Int64("required", sf.Required),
				zap.Int64("available", sf.Available),
			)
		}
	}

	// recipientCount counts planned (recipient, leg) attempts across the
	// funded legs, so a completed send always satisfies
	// recipientCount == totalSent + totalFailed == recipient rows, including
	// BOTH campaigns where a dual-consented contact is attempted twice.
	recipientCount := attemptCount(perLeg)
	if recipientCount == 0 {
		return nil, &InsufficientCreditsError{Shortfalls: shortfalls}
	}

	startedAt := s.now()
	claimed, err := s.campaigns.MarkSending(ctx, tenant.ID, campaign.ID, recipientCount, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to claim campaign: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: campaign already claimed by another send", domain.ErrConflict)
	}

	message := &domain.Message{
		ID:           uuid.NewString(),
		CampaignID:   campaign.ID,
		TenantID:     tenant.ID,
		Channel:      campaign.Channel,
		EmailSubject: campaign.EmailSubject,
		EmailBody:    campaign.EmailBody,
		SMSBody:      campaign.SMSBody,
		Status:       domain.MessageSending,
		CreatedAt:    startedAt,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	tally := s.fanOut(ctx, tenant, campaign, message, legs, perLeg)

	debitNotes := s.debitByUsage(ctx, tenant.ID, campaign.ID, tally)

	completedAt := s.now()
	if err := s.messages.MarkSent(ctx, message.ID, completedAt); err != nil {
		s.logger.Error("failed to mark message sent",
			zap.String("messageId", message.ID),
			zap.Error(err),
		)
	}

	totalSent, totalFailed := tally.totals()
	fx := s.completionSideEffects(actor, tenant, campaign, recipientCount, totalSent, totalFailed, debitNotes)
	if err := s.campaigns.MarkSent(ctx, tenant.ID, campaign.ID, totalSent, totalFailed, completedAt, fx); err != nil {
		return nil, fmt.Errorf("failed to complete campaign: %w", err)
	}

	s.logger.Info("campaign dispatched",
		zap.String("campaignId", campaign.ID),
		zap.String("tenantId", tenant.ID),
		zap.String("channel", campaign.Channel.String()),
		zap.Int("recipientCount", recipientCount),
		zap.Int("totalSent", totalSent),
		zap.Int("totalFailed", totalFailed),
	)

	return &DispatchResult{
		CampaignID:      campaign.ID,
		RecipientCount:  recipientCount,
		TotalSent:       totalSent,
		TotalFailed:     totalFailed,
		SkippedChannels: shortfalls,
	}, nil
}

func (s *DispatchService) checkCredits(ctx context.Context, tenantID string, legs []domain.Channel, perLeg map[domain.Channel][]domain.Contact) (funded []domain.Channel, shortfalls []ChannelShortfall, err error) {
	for _, leg := range legs {
		required := int64(len(perLeg[leg]))
		if required == 0 {
			continue
		}

		available, err := s.credits.Balance(ctx, tenantID, leg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s balance: %w", leg, err)
		}
		if available < required {
			shortfalls = append(shortfalls, ChannelShortfall{
				Channel:   leg,
				Required:  required,
				Available: available,
			})
			continue
		}
		funded = append(funded, leg)
	}

	return funded, shortfalls, nil
}

// attemptCount totals the planned (recipient, leg) attempts across the
// remaining legs.
func attemptCount(perLeg map[domain.Channel][]domain.Contact) int {
	n := 0
	for _, contacts := range perLeg {
		n += len(contacts)
	}
	return n
}

// sendTally accumulates per-leg outcomes under a mutex; leg goroutines only
// touch it through record.
type sendTally struct {
	mu     sync.Mutex
	sent   map[domain.Channel]int
	failed map[domain.Channel]int
}

func newSendTally() *sendTally {
	return &sendTally{
		sent:   make(map[domain.Channel]int, 2),
		failed: make(map[domain.Channel]int, 2),
	}
}

func (t *sendTally) record(leg domain.Channel, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.sent[leg]++
	} else {
		t.failed[leg]++
	}
}

func (t *sendTally) totals() (sent, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.sent {
		sent += n
	}
	for _, n := range t.failed {
		failed += n
	}
	return sent, failed
}

// fanOut runs every (recipient, leg) attempt on a bounded errgroup. A failed
// or panicking attempt records a FAILED recipient row and never aborts the
// other attempts, so one bad address cannot take down the batch.
func (s *DispatchService) fanOut(
	ctx context.Context,
	tenant *domain.Tenant,
	campaign *domain.Campaign,
	message *domain.Message,
	legs []domain.Channel,
	perLeg map[domain.Channel][]domain.Contact,
) *sendTally {
	tally := newSendTally()

	legCreds := make(map[domain.Channel]sender.Credentials, len(legs))
	for _, leg := range legs {
		creds, err := s.credentials.Resolve(ctx, tenant.ID, leg)
		if err != nil {
			s.logger.Warn("failed to resolve credentials, sending without tenant auth",
				zap.String("tenantId", tenant.ID),
				zap.String("channel", leg.String()),
				zap.Error(err),
			)
		}
		legCreds[leg] = creds
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, leg := range legs {
		for i := range perLeg[leg] {
			contact := perLeg[leg][i]

			g.Go(func() error {
				ok := s.sendOne(groupCtx, campaign, message, leg, contact, legCreds[leg])
				tally.record(leg, ok)
				return nil
			})
		}
	}

	// Worker funcs never return errors; Wait only synchronizes.
	_ = g.Wait()

	return tally
}

func (s *DispatchService) sendOne(
	ctx context.Context,
	campaign *domain.Campaign,
	message *domain.Message,
	leg domain.Channel,
	contact domain.Contact,
	creds sender.Credentials,
) (ok bool) {
	channelName := strings.ToLower(leg.String())
	address := contact.Address(leg)
	start := s.now()

	if s.metrics != nil {
		s.metrics.IncDispatchInFlight(channelName)
		defer s.metrics.DecDispatchInFlight(channelName)
	}

	var sendErr error
	defer func() {
		if r := recover(); r != nil {
			sendErr = fmt.Errorf("panic during send: %v", r)
			ok = false
		}
		s.recordRecipient(ctx, message.ID, contact.ID, leg, address, sendErr)
		if s.metrics != nil {
			if sendErr == nil {
				s.metrics.IncRecipientSent(channelName)
			} else {
				s.metrics.IncRecipientFailed(channelName)
			}
			s.metrics.ObserveSendDuration(channelName, s.now().Sub(start))
		}
	}()

	if err := s.rateLimiter.Wait(ctx, channelName); err != nil {
		sendErr = fmt.Errorf("rate limiter wait failed: %w", err)
		return false
	}

	body := personalize(campaign.ContentFor(leg), &contact)

	switch leg {
	case domain.ChannelEmail:
		_, sendErr = s.email.SendEmail(ctx, sender.EmailMessage{
			To:             address,
			Subject:        personalize(campaign.EmailSubject, &contact),
			HTML:           body,
			SenderIdentity: campaign.SenderIdentity,
			Credentials:    creds,
		})
	case domain.ChannelSMS:
		_, sendErr = s.sms.SendSMS(ctx, sender.SMSMessage{
			To:          address,
			Body:        body,
			Credentials: creds,
		})
	default:
		sendErr = fmt.Errorf("%w: leg %q is not sendable", domain.ErrValidation, leg)
	}

	if sendErr != nil {
		// Transient failures (timeouts, provider 5xx) are worth retrying from
		// a fresh campaign; permanent ones mean a bad address or payload.
		s.logger.Warn("recipient send failed",
			zap.String("campaignId", campaign.ID),
			zap.String("contactId", contact.ID),
			zap.String("channel", channelName),
			zap.Bool("transient", sender.IsTransient(sendErr)),
			zap.Error(sendErr),
		)
		return false
	}

	return true
}

func (s *DispatchService) recordRecipient(ctx context.Context, messageID, contactID string, leg domain.Channel, address string, sendErr error) {
	rec := &domain.MessageRecipient{
		ID:        uuid.NewString(),
		MessageID: messageID,
		ContactID: contactID,
		Channel:   leg,
		Address:   address,
		Status:    domain.RecipientSent,
		CreatedAt: s.now(),
	}
	if sendErr != nil {
		rec.Status = domain.RecipientFailed
		cause := sendErr.Error()
		rec.Error = &cause
	}

	if err := s.messages.CreateRecipient(ctx, rec); err != nil {
		s.logger.Error("failed to record recipient outcome",
			zap.String("messageId", messageID),
			zap.String("contactId", contactID),
			zap.Error(err),
		)
	}
}

// debitByUsage charges each leg for its successful sends after the loop
// completes. Failed attempts are free. A debit failure here is logged and
// noted in the audit trail; the messages are already out, so the dispatch
// still completes.
func (s *DispatchService) debitByUsage(ctx context.Context, tenantID, campaignID string, tally *sendTally) []string {
	var notes []string

	tally.mu.Lock()
	sent := make(map[domain.Channel]int, len(tally.sent))
	for leg, n := range tally.sent {
		sent[leg] = n
	}
	tally.mu.Unlock()

	for _, leg := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS} {
		n := sent[leg]
		if n == 0 {
			continue
		}

		txn, err := s.credits.Debit(ctx, tenantID, leg, int64(n), &campaignID,
			fmt.Sprintf("campaign %s: %d %s sends", campaignID, n, strings.ToLower(leg.String())))
		if err != nil {
			s.logger.Error("post-send debit failed",
				zap.String("tenantId", tenantID),
				zap.String("campaignId", campaignID),
				zap.String("channel", leg.String()),
				zap.Int("amount", n),
				zap.Error(err),
			)
			notes = append(notes, fmt.Sprintf("%s debit of %d failed: %v", leg, n, err))
			continue
		}

		if s.metrics != nil {
			s.metrics.AddCreditsDebited(strings.ToLower(leg.String()), int64(n))
		}
		s.logger.Info("credits debited",
			zap.String("tenantId", tenantID),
			zap.String("campaignId", campaignID),
			zap.String("channel", leg.String()),
			zap.Int("amount", n),
			zap.Int64("balanceAfter", txn.BalanceAfter),
		)
	}

	return notes
}

func (s *DispatchService) completionSideEffects(
	actor domain.Actor,
	tenant *domain.Tenant,
	campaign *domain.Campaign,
	recipientCount, totalSent, totalFailed int,
	debitNotes []string,
) *repository.SideEffects {
	summary := repository.AuditPayload(map[string]int{
		"recipientCount": recipientCount,
		"totalSent":      totalSent,
		"totalFailed":    totalFailed,
	})
	entry := repository.NewAuditEntry(tenant.ID, &actor.UserID, domain.ActionCampaignSent, "campaign", campaign.ID, nil, summary)

	fx := &repository.SideEffects{
		Audits: []domain.AuditLogEntry{entry},
		Notifications: []domain.TenantNotification{{
			ID:       uuid.NewString(),
			TenantID: tenant.ID,
			Kind:     domain.KindCampaignCompleted,
			Title:    fmt.Sprintf("Campaign %q completed", campaign.Name),
			Body:     fmt.Sprintf("Sent %d of %d recipients, %d failed.", totalSent, recipientCount, totalFailed),
		}},
		Outbox: []domain.OutboxEvent{{
			ID:         uuid.NewString(),
			TenantID:   tenant.ID,
			Kind:       domain.KindCampaignCompleted,
			Subject:    fmt.Sprintf("Campaign %q completed", campaign.Name),
			Body:       fmt.Sprintf("Campaign %q finished: %d sent, %d failed out of %d recipients.", campaign.Name, totalSent, totalFailed, recipientCount),
			Recipients: tenant.AdminEmails,
			Status:     domain.OutboxPending,
		}},
	}

	for _, note := range debitNotes {
		fx.Audits = append(fx.Audits,
			repository.NewAuditEntry(tenant.ID, nil, domain.ActionCreditsDebited, "campaign", campaign.ID, nil,
				repository.AuditPayload(map[string]string{"note": note})))
	}

	return fx
}

// personalize substitutes recipient tokens into campaign content.
func personalize(content string, c *domain.Contact) string {
	if !strings.Contains(content, "{{") {
		return content
	}

	email := ""
	if c.Email != nil {
		email = *c.Email
	}

	return strings.NewReplacer(
		"{{first_name}}", c.FirstName,
		"{{last_name}}", c.LastName,
		"{{email}}", email,
	).Replace(content)
}
