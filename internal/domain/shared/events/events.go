package events

import "time"

// DomainEvent is produced by aggregates when state changes.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects pending events on an aggregate until the application
// layer drains them into the outbox.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(ev DomainEvent) {
	r.pending = append(r.pending, ev)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	return r.pending
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}
