package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
)

const (
	EventTypeAccountRegistered      = "account.registered"
	EventTypeAccountActivated       = "account.activated"
	EventTypePasswordResetRequested = "account.password_reset_requested"
	EventTypePasswordResetCompleted = "account.password_reset_completed"
	EventTypePasswordChanged        = "account.password_changed"
	EventTypeAccountUpdated         = "account.updated"
)

// accountEvent builds the outbox record for a user mutation.
// Keys and hashes stay out of the payload; consumers only learn which account changed.
func accountEvent(eventType string, u domain.User, at time.Time) ports.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{
		"user_id":     u.ID.String(),
		"login":       u.Login,
		"email":       u.Email,
		"activated":   u.Activated,
		"occurred_at": at,
	})
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: u.ID.String(),
		Payload:      payload,
		OccurredAt:   at,
	}
}
