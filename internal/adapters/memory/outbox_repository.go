package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.outbox[event.EventID]; ok {
		return domain.ErrConflict
	}
	r.store.outbox[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		FirstSeenAt:  event.OccurredAt,
	}
	r.store.outboxOrder = append(r.store.outboxOrder, event.EventID)
	return nil
}

func (r *OutboxRepository) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.store.outboxOrder {
		row, ok := r.store.outbox[id]
		if !ok || row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.outbox[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	row.PublishedAt = &at
	r.store.outbox[outboxID] = row
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	defer r.store.writeLock(ctx)()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.outbox[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	row.RetryCount++
	row.LastError = &errMsg
	row.LastErrorAt = &at
	r.store.outbox[outboxID] = row
	return nil
}

// EventTypes lists every enqueued event type in enqueue order.
func (r *OutboxRepository) EventTypes() []string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]string, 0, len(r.store.outboxOrder))
	for _, id := range r.store.outboxOrder {
		if row, ok := r.store.outbox[id]; ok {
			out = append(out, row.EventType)
		}
	}
	return out
}
