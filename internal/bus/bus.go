package bus

import (
	"context"
	"sync"
)

// Handler receives a message published on a subscribed topic.
type Handler func(topic string, payload []byte)

// Bus is the pub/sub backbone room broadcasts ride on. A single-process
// deployment uses Local; multi-process deployments back it with Redis so a
// broadcast published by one gateway reaches subscribers connected to others.
type Bus interface {
	// Publish sends payload to every subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for topic and returns an unsubscribe
	// function.
	Subscribe(ctx context.Context, topic string, h Handler) (func(), error)

	// Close releases bus resources.
	Close() error
}

// Local is an in-process Bus. Delivery is synchronous and best-effort.
type Local struct {
	mu       sync.RWMutex
	next     int
	handlers map[string]map[int]Handler
}

// NewLocal constructs an in-process bus.
func NewLocal() *Local {
	return &Local{handlers: make(map[string]map[int]Handler)}
}

// Publish delivers payload to every handler subscribed to topic.
func (b *Local) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers a handler for topic.
func (b *Local) Subscribe(_ context.Context, topic string, h Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.handlers[topic][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers[topic], id)
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
		b.mu.Unlock()
	}, nil
}

// Close is a no-op for the in-process bus.
func (b *Local) Close() error { return nil }
