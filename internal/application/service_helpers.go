package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

const (
	idempotencyStatusPending   = "pending"
	idempotencyStatusCompleted = "completed"

	recommendGenerationKey = "ledger:recommend:generation"
	recommendGenerationTTL = 7 * 24 * time.Hour
)

type contributionEventData struct {
	DonationID    string  `json:"donation_id"`
	DonorID       string  `json:"donor_id"`
	Email         string  `json:"email"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	DonorTotal    float64 `json:"donor_total"`
	Collected     float64 `json:"collected_amount"`
	Status        string  `json:"status"`
	NewDonor      bool    `json:"new_donor"`
}

type refundEventData struct {
	DonationID string  `json:"donation_id"`
	DonorID    string  `json:"donor_id"`
	Email      string  `json:"email"`
	Amount     float64 `json:"amount"`
	Collected  float64 `json:"collected_amount,omitempty"`
	Status     string  `json:"status,omitempty"`
}

type goalReachedEventData struct {
	DonationID  string  `json:"donation_id"`
	OwnerEmail  string  `json:"owner_email"`
	MaxDonation float64 `json:"max_donation"`
	Collected   float64 `json:"collected_amount"`
}

type reconciledEventData struct {
	DonationID        string  `json:"donation_id"`
	PreviousCollected float64 `json:"previous_collected"`
	Collected         float64 `json:"collected_amount"`
	PreviousStatus    string  `json:"previous_status"`
	Status            string  `json:"status"`
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, donationID, traceID string, data any) error {
	if s.outbox == nil {
		return nil
	}
	if !domain.IsEmittedEvent(eventType) {
		return fmt.Errorf("%w: unsupported event type %s", domain.ErrInvalidInput, eventType)
	}
	occurredAt := s.nowFn()
	eventID := uuid.New()
	payloadEnvelope := map[string]any{
		"event_id":           eventID.String(),
		"event_type":         eventType,
		"occurred_at":        occurredAt.Format(time.RFC3339),
		"source_service":     s.cfg.ServiceName,
		"trace_id":           traceID,
		"schema_version":     "1.0",
		"partition_key_path": domain.PartitionKeyPath(eventType),
		"partition_key":      donationID,
		"data":               data,
	}
	payload, err := json.Marshal(payloadEnvelope)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:          eventID,
		EventType:        eventType,
		PartitionKey:     donationID,
		PartitionKeyPath: domain.PartitionKeyPath(eventType),
		Payload:          payload,
		OccurredAt:       occurredAt,
		SchemaVersion:    "1.0",
		TraceID:          traceID,
	})
}

func hashRequest(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func contributionIdempotencyKey(donationID, email, key string) string {
	return "contribution:" + hashRequest([]string{donationID, email, key})
}

// replayIdempotent loads a finished response stored under key into out.
// ok is false when nothing has been stored yet.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string, out any) (bool, error) {
	if s.idempotency == nil || key == "" {
		return false, nil
	}
	rec, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if rec.RequestHash != requestHash {
		return false, fmt.Errorf("%w: key reused with a different request", domain.ErrIdempotencyConflict)
	}
	if rec.Status != idempotencyStatusCompleted || len(rec.ResponseBody) == 0 {
		return false, fmt.Errorf("%w: request still in progress", domain.ErrIdempotencyConflict)
	}
	if err := json.Unmarshal(rec.ResponseBody, out); err != nil {
		return false, fmt.Errorf("decode idempotent response: %w", err)
	}
	return true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil || key == "" {
		return nil
	}
	err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL))
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
	}
	return err
}

func (s *Service) completeIdempotency(ctx context.Context, key string, code int, payload any) {
	if s.idempotency == nil || key == "" {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.idempotency.Complete(ctx, key, code, body, s.nowFn()); err != nil {
		slog.Default().WarnContext(ctx, "failed to complete idempotency record",
			"module", "application",
			"layer", "application",
			"operation", "complete_idempotency",
			"outcome", "failure",
			"error", err,
		)
	}
}

func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if s.idempotency == nil || key == "" {
		return
	}
	_ = s.idempotency.Release(ctx, key)
}

func (s *Service) bumpRecommendGeneration(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_, _ = s.cache.IncrWithTTL(ctx, recommendGenerationKey, recommendGenerationTTL)
}

func (s *Service) recommendCacheKey(ctx context.Context, email, excludeID string, count int) string {
	generation, err := s.cache.Get(ctx, recommendGenerationKey)
	if err != nil || generation == "" {
		generation = "0"
	}
	viewer := hashRequest(email)[:16]
	return fmt.Sprintf("ledger:recommend:%s:%s:%s:%d", generation, viewer, excludeID, count)
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.Email) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}
