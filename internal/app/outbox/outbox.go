package outbox

import (
	"context"
	"encoding/json"
	"time"

	"rently/internal/domain/shared/events"
)

// EventRecord is the serialized form of a domain event awaiting publication.
type EventRecord struct {
	Name       string
	Aggregate  string
	Payload    []byte
	Headers    map[string]string
	OccurredAt time.Time
}

// Outbox buffers event records inside the current transaction boundary;
// Flush hands them over for asynchronous publication after commit.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// EventEncoder turns a domain event into a payload.
type EventEncoder interface {
	Encode(ev events.DomainEvent) ([]byte, error)
}

type JSONEventEncoder struct{}

func (JSONEventEncoder) Encode(ev events.DomainEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// RecordDomainEvents encodes and stores the aggregate's pending events.
func RecordDomainEvents(ctx context.Context, box Outbox, enc EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if enc == nil {
		enc = JSONEventEncoder{}
	}
	for _, ev := range evs {
		payload, err := enc.Encode(ev)
		if err != nil {
			return err
		}
		record := EventRecord{
			Name:       ev.EventName(),
			Aggregate:  ev.AggregateID(),
			Payload:    payload,
			OccurredAt: ev.OccurredAt(),
		}
		if err := box.Add(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
