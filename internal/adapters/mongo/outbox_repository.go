package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type outboxRepository struct {
	coll *mongo.Collection
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	doc := outboxDocument{
		ID:               event.EventID.String(),
		EventType:        event.EventType,
		PartitionKey:     event.PartitionKey,
		PartitionKeyPath: event.PartitionKeyPath,
		Payload:          string(event.Payload),
		SchemaVersion:    event.SchemaVersion,
		TraceID:          event.TraceID,
		FirstSeenAt:      event.OccurredAt,
		CreatedAt:        event.OccurredAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *outboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.coll.Find(ctx, bson.M{"publishedAt": nil}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var docs []outboxDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(docs))
	for _, doc := range docs {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			continue
		}
		out = append(out, ports.OutboxRecord{
			OutboxID:     id,
			EventType:    doc.EventType,
			PartitionKey: doc.PartitionKey,
			Payload:      []byte(doc.Payload),
			RetryCount:   doc.RetryCount,
			PublishedAt:  doc.PublishedAt,
			LastError:    doc.LastError,
			LastErrorAt:  doc.LastErrorAt,
			FirstSeenAt:  doc.FirstSeenAt,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": outboxID.String()}, bson.M{"$set": bson.M{"publishedAt": at}})
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": outboxID.String()}, bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errMsg, "lastErrorAt": at},
	})
	return err
}
