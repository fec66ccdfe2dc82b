package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appoutbox "rently/internal/app/outbox"
	infraoutbox "rently/internal/infra/outbox"
)

// Outbox buffers event records per request and hands them to the durable
// store on flush, i.e. after the surrounding transaction committed.
type Outbox struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
	store   infraoutbox.Store
}

func NewOutbox(store infraoutbox.Store) *Outbox {
	return &Outbox{store: store}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.mu.Unlock()
	if o.store == nil || len(pending) == 0 {
		return nil
	}
	docs := make([]infraoutbox.EventDocument, 0, len(pending))
	for _, rec := range pending {
		docs = append(docs, infraoutbox.EventDocument{
			ID:         uuid.NewString(),
			Name:       rec.Name,
			Aggregate:  rec.Aggregate,
			Payload:    rec.Payload,
			Headers:    rec.Headers,
			OccurredAt: rec.OccurredAt,
			Status:     infraoutbox.StatusPending,
		})
	}
	return o.store.Append(ctx, docs...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)

// OutboxStore is the in-memory durable side of the outbox.
type OutboxStore struct {
	mu   sync.Mutex
	docs []infraoutbox.EventDocument
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

func (s *OutboxStore) Append(ctx context.Context, docs ...infraoutbox.EventDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.docs {
		doc := &s.docs[i]
		if doc.Status == infraoutbox.StatusSent {
			continue
		}
		if doc.ClaimedBy != "" && doc.Status == infraoutbox.StatusPending {
			continue
		}
		if !doc.NextRetryAt.IsZero() && doc.NextRetryAt.After(now) {
			continue
		}
		doc.ClaimedBy = workerID
		doc.Status = infraoutbox.StatusPending
		out := *doc
		return &out, nil
	}
	return nil, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			s.docs[i].Status = infraoutbox.StatusSent
			return nil
		}
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			s.docs[i].Status = infraoutbox.StatusFailed
			s.docs[i].Attempts++
			s.docs[i].NextRetryAt = nextRetry
			s.docs[i].LastError = reason
			s.docs[i].ClaimedBy = ""
			return nil
		}
	}
	return nil
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
