package outbox

import (
	"context"
	"time"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// EventDocument is a persisted outbox entry awaiting publication.
type EventDocument struct {
	ID          string
	Name        string
	Aggregate   string
	Payload     []byte
	Headers     map[string]string
	OccurredAt  time.Time
	Status      string
	Attempts    int
	NextRetryAt time.Time
	LastError   string
	ClaimedBy   string
}

// Store persists outbox entries across process restarts. Claim hands out at
// most one pending document per call so concurrent workers never publish the
// same event twice.
type Store interface {
	Append(ctx context.Context, docs ...EventDocument) error
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error
}
