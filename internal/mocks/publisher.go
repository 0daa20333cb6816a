package mocks

import (
	"context"
	"sync"
)

// PublisherMock records published events for assertions.
type PublisherMock struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

type PublishedEvent struct {
	RoutingKey string
	Event      any
	Headers    map[string]string
}

func (p *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{RoutingKey: routingKey, Event: event, Headers: headers})
	return nil
}

func (p *PublisherMock) Close() error {
	return nil
}

func (p *PublisherMock) Published() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.Events))
	copy(out, p.Events)
	return out
}
