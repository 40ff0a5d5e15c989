package queue

import (
	"fmt"
	"strings"
)

// EventMessage is the broker payload for one outbox notification event.
// The event body itself stays in the database; consumers reload it by id so
// the broker never carries tenant email content.
type EventMessage struct {
	EventID       string `json:"eventId"`
	TenantID      string `json:"tenantId"`
	Kind          string `json:"kind"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m EventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("tenantId is required")
	}
	if strings.TrimSpace(m.Kind) == "" {
		return fmt.Errorf("kind is required")
	}
	return nil
}
