package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// idempotencyRepository relies on the TTL index for cleanup; the expiry
// checks below cover the window before the TTL monitor runs.
type idempotencyRepository struct {
	coll *mongo.Collection
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	var doc idempotencyDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": key, "expiresAt": bson.M{"$gt": time.Now().UTC()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &ports.IdempotencyRecord{
		Key:          doc.Key,
		RequestHash:  doc.RequestHash,
		Status:       doc.Status,
		ResponseCode: doc.ResponseCode,
		ResponseBody: doc.ResponseBody,
		ExpiresAt:    doc.ExpiresAt,
	}, nil
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": key, "expiresAt": bson.M{"$lte": now}}); err != nil {
		return err
	}
	_, err := r.coll.InsertOne(ctx, idempotencyDocument{
		Key:         key,
		RequestHash: requestHash,
		Status:      "pending",
		ExpiresAt:   expiresAt,
		UpdatedAt:   now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": bson.M{
		"status":       "completed",
		"responseCode": responseCode,
		"responseBody": responseBody,
		"updatedAt":    at,
	}})
	return err
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
