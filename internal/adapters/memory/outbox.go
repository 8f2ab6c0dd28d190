package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/account-service/internal/ports"
)

// OutboxRepository keeps outbox records in memory with the same claim semantics as Postgres.
type OutboxRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*ports.OutboxRecord
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{records: make(map[uuid.UUID]*ports.OutboxRecord)}
}

func (r *OutboxRepository) enqueue(event ports.OutboxEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[event.EventID] = &ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt,
	}
}

func (r *OutboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	pending := make([]*ports.OutboxRecord, 0)
	for _, rec := range r.records {
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && !rec.ClaimUntil.Before(now) {
			continue
		}
		pending = append(pending, rec)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]ports.OutboxRecord, 0, len(pending))
	for _, rec := range pending {
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		out = append(out, *rec)
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	r.mutate(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		published := at
		rec.PublishedAt = &published
	})
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.mutate(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		failedAt := at
		msg := errMsg
		rec.RetryCount++
		rec.LastError = &msg
		rec.LastErrorAt = &failedAt
	})
	return nil
}

func (r *OutboxRepository) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.mutate(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		deadAt := at
		msg := errMsg
		rec.RetryCount++
		rec.LastError = &msg
		rec.LastErrorAt = &deadAt
		rec.DeadLetteredAt = &deadAt
	})
	return nil
}

// Records returns a snapshot of every stored record ordered by creation time.
func (r *OutboxRepository) Records() []ports.OutboxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *OutboxRepository) mutate(outboxID uuid.UUID, claimToken string, fn func(*ports.OutboxRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return
	}
	fn(rec)
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
}
