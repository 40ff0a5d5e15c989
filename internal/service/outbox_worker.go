package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/observability"
	"github.com/kursadbilgin/campaign-engine/internal/queue"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
)

const (
	defaultOutboxInterval    = 5 * time.Second
	defaultOutboxBatchLimit  = 100
	defaultOutboxMaxAttempts = 5
)

// OutboxWorker drains pending outbox events to the broker. Events are
// written transactionally with the state changes that produced them, so the
// worker only ever re-publishes; it never invents or loses an event.
type OutboxWorker struct {
	outbox      repository.OutboxRepository
	publisher   queue.Publisher
	logger      *zap.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	limit       int
	maxAttempts int
	now         func() time.Time
}

func NewOutboxWorker(
	outbox repository.OutboxRepository,
	publisher queue.Publisher,
	interval time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*OutboxWorker, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultOutboxInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboxWorker{
		outbox:      outbox,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
		interval:    interval,
		limit:       defaultOutboxBatchLimit,
		maxAttempts: defaultOutboxMaxAttempts,
		now:         time.Now,
	}, nil
}

func (w *OutboxWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Drain anything left over from a previous run before the first tick.
	if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("outbox initial drain failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of pending events.
func (w *OutboxWorker) Drain(ctx context.Context) error {
	events, err := w.outbox.FindPending(ctx, w.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)

	for i := range events {
		event := events[i]
		msg := queue.EventMessage{
			EventID:       event.ID,
			TenantID:      event.TenantID,
			Kind:          event.Kind,
			CorrelationID: correlationID,
		}

		if err := w.publisher.Publish(ctx, queue.EventQueueName, msg); err != nil {
			w.logger.Error("failed to publish outbox event",
				zap.String("eventId", event.ID),
				zap.String("kind", event.Kind),
				zap.Int("attemptCount", event.AttemptCount),
				zap.Error(err),
			)
			if w.metrics != nil {
				w.metrics.IncOutboxFailed()
			}
			if markErr := w.outbox.MarkFailed(ctx, event.ID, err.Error(), w.maxAttempts); markErr != nil {
				w.logger.Error("failed to record outbox publish failure",
					zap.String("eventId", event.ID),
					zap.Error(markErr),
				)
			}
			continue
		}

		if err := w.outbox.MarkPublished(ctx, event.ID, w.now()); err != nil {
			w.logger.Error("failed to mark outbox event published",
				zap.String("eventId", event.ID),
				zap.Error(err),
			)
			continue
		}

		if w.metrics != nil {
			w.metrics.IncOutboxPublished()
		}
	}

	return nil
}
