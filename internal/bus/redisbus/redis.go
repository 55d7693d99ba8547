package redisbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/strandchat/gateway/internal/bus"
)

// Bus implements bus.Bus on Redis pub/sub so room broadcasts cross gateway
// processes.
type Bus struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// Ensure interface compliance at compile time.
var _ bus.Bus = (*Bus)(nil)

// New connects to Redis using the given URL (redis://...).
func New(url string) (*Bus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Bus{client: c}, nil
}

// Publish sends payload to every subscriber of topic across all processes.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// Subscribe registers a handler for topic. The handler runs on a dedicated
// goroutine until unsubscribed or the context is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string, h bus.Handler) (func(), error) {
	sub := b.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h(msg.Channel, []byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { _ = sub.Close() }, nil
}

// Close closes all subscriptions and the client.
func (b *Bus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Close()
	}
	b.subs = nil
	b.mu.Unlock()
	return b.client.Close()
}
