package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/queue"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
	"github.com/kursadbilgin/campaign-engine/internal/sender"
)

// NotifierService consumes outbox event messages and emails the tenant's
// admins. Email failures are logged; the state change the event announced is
// long committed, so delivery here is strictly best effort.
type NotifierService struct {
	outbox   repository.OutboxRepository
	consumer queue.Consumer
	email    sender.EmailSender
	logger   *zap.Logger
}

func NewNotifierService(
	outbox repository.OutboxRepository,
	consumer queue.Consumer,
	email sender.EmailSender,
	logger *zap.Logger,
) (*NotifierService, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if email == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotifierService{
		outbox:   outbox,
		consumer: consumer,
		email:    email,
		logger:   logger,
	}, nil
}

// Start consumes the event queue until context cancellation.
func (s *NotifierService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.consumer.Consume(ctx, queue.EventQueueName, s.ProcessEvent)
}

// ProcessEvent delivers one event's admin emails. The broker message only
// carries the event id; the subject, body and recipients are reloaded from
// the outbox row.
func (s *NotifierService) ProcessEvent(ctx context.Context, msg queue.EventMessage) error {
	event, err := s.outbox.GetByID(ctx, msg.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("outbox event not found, dropping",
				zap.String("eventId", msg.EventID),
			)
			return nil
		}
		return fmt.Errorf("failed to load outbox event: %w", err)
	}

	recipients := event.RecipientList()
	if len(recipients) == 0 {
		s.logger.Warn("outbox event has no recipients",
			zap.String("eventId", event.ID),
			zap.String("tenantId", event.TenantID),
		)
		return nil
	}

	var failed int
	for _, to := range recipients {
		_, err := s.email.SendEmail(ctx, sender.EmailMessage{
			To:      to,
			Subject: event.Subject,
			HTML:    event.Body,
		})
		if err != nil {
			failed++
			s.logger.Error("failed to email admin",
				zap.String("eventId", event.ID),
				zap.String("tenantId", event.TenantID),
				zap.String("kind", event.Kind),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("event emails delivered",
		zap.String("eventId", event.ID),
		zap.String("kind", event.Kind),
		zap.Int("recipients", len(recipients)),
		zap.Int("failed", failed),
	)

	// Partial failure is not retried through the broker: re-delivery would
	// double-send to the admins already reached.
	return nil
}
