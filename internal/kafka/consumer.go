package kafka

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	logger  *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, logger)
}

func newConsumer(r messageReader, workers int, logger *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{r: r, workers: workers, logger: logger}
}

// Start dispatches fetched messages to a worker pool until ctx is cancelled.
// Failed messages are left uncommitted so the group redelivers them.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					c.logger.ErrorContext(ctx, "handle message", "worker", id, "topic", m.Topic,
						"partition", m.Partition, "offset", m.Offset, "error", err)
					time.Sleep(200 * time.Millisecond)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.logger.WarnContext(ctx, "commit offset", "worker", id, "offset", m.Offset, "error", err)
				}
			}
		}(i)
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
