package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

// SideEffects carries the append-only rows a mutating operation wants written
// in the same transaction as its state change. Audit entries, in-app
// notifications and outbox events either all commit with the change or none
// of them do.
type SideEffects struct {
	Audits        []domain.AuditLogEntry
	Notifications []domain.TenantNotification
	Outbox        []domain.OutboxEvent
}

// AuditPayload encodes v for an audit entry's before/after column. The
// column is jsonb, so payloads must go through the JSON encoder; hand-built
// strings can carry escapes postgres rejects, which would fail the insert and
// roll back the state change riding in the same transaction.
func AuditPayload(v any) *string {
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshalError": err.Error()})
	}
	s := string(raw)
	return &s
}

// IsEmpty reports whether there is nothing to append.
func (fx *SideEffects) IsEmpty() bool {
	return fx == nil || (len(fx.Audits) == 0 && len(fx.Notifications) == 0 && len(fx.Outbox) == 0)
}

func appendSideEffects(tx *gorm.DB, fx *SideEffects, now time.Time) error {
	if fx.IsEmpty() {
		return nil
	}

	for i := range fx.Audits {
		entry := &fx.Audits[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
	}

	for i := range fx.Notifications {
		n := &fx.Notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if err := tx.Create(n).Error; err != nil {
			return err
		}
	}

	for i := range fx.Outbox {
		ev := &fx.Outbox[i]
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Status == "" {
			ev.Status = domain.OutboxPending
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		ev.UpdatedAt = now
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
	}

	return nil
}
