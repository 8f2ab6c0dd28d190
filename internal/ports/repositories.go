package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/account-service/internal/domain"
)

// UserRepository is the credential store.
// Lookups return domain.ErrNotFound when nothing matches. Writes carry the outbox event
// that describes them so the row and the integration signal commit together.
type UserRepository interface {
	GetByLogin(ctx context.Context, login string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByActivationKey(ctx context.Context, key string) (domain.User, error)
	GetByResetKey(ctx context.Context, key string) (domain.User, error)
	// CountByIPCreatedBetween counts accounts registered from ip with createdDate in [from, to].
	CountByIPCreatedBetween(ctx context.Context, ip string, from, to time.Time) (int, error)
	// CreateWithOutboxTx inserts a new account. Unique violations surface as
	// domain.ErrDuplicateLogin or domain.ErrDuplicateEmail.
	CreateWithOutboxTx(ctx context.Context, user domain.User, event OutboxEvent) error
	UpdateWithOutboxTx(ctx context.Context, user domain.User, event OutboxEvent) error
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for account events.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
