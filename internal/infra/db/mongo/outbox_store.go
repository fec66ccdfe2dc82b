package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	infraoutbox "rently/internal/infra/outbox"
)

// OutboxStore persists outbox entries in the same database as the aggregates
// so appends ride the surrounding transaction.
type OutboxStore struct {
	col *mongo.Collection
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	return &OutboxStore{col: db.Collection("outbox_events")}
}

func (s *OutboxStore) Append(ctx context.Context, docs ...infraoutbox.EventDocument) error {
	if len(docs) == 0 {
		return nil
	}
	records := make([]any, 0, len(docs))
	for _, doc := range docs {
		records = append(records, outboxDocument{
			ID:         doc.ID,
			Name:       doc.Name,
			Aggregate:  doc.Aggregate,
			Payload:    doc.Payload,
			Headers:    doc.Headers,
			OccurredAt: doc.OccurredAt.UnixMilli(),
			Status:     infraoutbox.StatusPending,
		})
	}
	_, err := s.col.InsertMany(ctx, records)
	return err
}

// Claim atomically hands one publishable document to the worker.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	now := time.Now()
	filter := bson.M{
		"status": bson.M{"$ne": infraoutbox.StatusSent},
		"$or": []bson.M{
			{"claimed_by": ""},
			{"claimed_by": bson.M{"$exists": false}},
			{"next_retry_at": bson.M{"$lte": now.UnixMilli()}},
		},
	}
	update := bson.M{"$set": bson.M{"claimed_by": workerID, "claimed_at": now.UnixMilli()}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetReturnDocument(options.After)
	var doc outboxDocument
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEvent(), nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":  infraoutbox.StatusSent,
		"sent_at": time.Now().UnixMilli(),
	}})
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":        infraoutbox.StatusFailed,
			"next_retry_at": nextRetry.UnixMilli(),
			"last_error":    reason,
			"claimed_by":    "",
		},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

type outboxDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Aggregate   string            `bson:"aggregate"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers,omitempty"`
	OccurredAt  int64             `bson:"occurred_at"`
	Status      string            `bson:"status"`
	Attempts    int               `bson:"attempts"`
	NextRetryAt int64             `bson:"next_retry_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
}

func (d outboxDocument) toEvent() *infraoutbox.EventDocument {
	return &infraoutbox.EventDocument{
		ID:          d.ID,
		Name:        d.Name,
		Aggregate:   d.Aggregate,
		Payload:     d.Payload,
		Headers:     d.Headers,
		OccurredAt:  time.UnixMilli(d.OccurredAt).UTC(),
		Status:      d.Status,
		Attempts:    d.Attempts,
		NextRetryAt: time.UnixMilli(d.NextRetryAt).UTC(),
		LastError:   d.LastError,
		ClaimedBy:   d.ClaimedBy,
	}
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
