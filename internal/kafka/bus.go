package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// EventBus routes envelopes to one producer per topic.
type EventBus struct {
	producers map[string]*Producer
}

// NewEventBus creates a producer for each of the bookstore topics.
func NewEventBus(brokers []string, buf int, logger *slog.Logger) *EventBus {
	b := &EventBus{producers: map[string]*Producer{}}
	for _, topic := range []string{bookstore.TopicOrderCreated, bookstore.TopicKycBound, bookstore.TopicCatalog} {
		b.producers[topic] = NewProducer(brokers, topic, buf, logger)
	}
	return b
}

func (b *EventBus) Start(ctx context.Context) {
	for _, p := range b.producers {
		p.Start(ctx)
	}
}

func (b *EventBus) Publish(ctx context.Context, topic string, key []byte, env bookstore.Envelope) error {
	p, ok := b.producers[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %q", topic)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.Publish(ctx, key, body,
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

// Close flushes every producer and waits for them to finish.
func (b *EventBus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
