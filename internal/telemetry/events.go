package telemetry

import (
	"context"
	"log"
	"time"
)

// Publisher is the broker abstraction the emitter writes through.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// EventEmitter publishes platform events (message sent, conversation
// created, read receipts) for downstream consumers such as the notification
// service. Emission is fire-and-forget; a broker failure never fails the
// operation that produced the event.
type EventEmitter struct {
	publisher   Publisher
	service     string
	environment string
}

// EventEnvelope is the stable wire format for platform events.
type EventEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	Payload       any    `json:"payload"`
}

// NewEventEmitter constructs an emitter bound to a publisher.
func NewEventEmitter(publisher Publisher, service, environment string) *EventEmitter {
	return &EventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one event under the "messaging.<eventType>" routing key.
// Safe on a nil emitter so wiring stays optional in tests.
func (e *EventEmitter) Emit(ctx context.Context, eventType string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := EventEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, "messaging."+eventType, envelope, nil); err != nil {
		log.Printf("event publish failed: type=%s err=%v", eventType, err)
	}
}
