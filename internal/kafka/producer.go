package kafka

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer drives.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox and writes them from one goroutine,
// so Publish never waits on the broker.
type Producer struct {
	w       messageWriter
	topic   string
	inbox   chan kafka.Message
	closeCh chan struct{}
	logger  *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, topic, buf, logger)
}

func newProducer(w messageWriter, topic string, buf int, logger *slog.Logger) *Producer {
	if buf <= 0 {
		buf = 256
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Producer{
		w:       w,
		topic:   topic,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

// Start runs the writer loop until ctx is cancelled or Close is called. The
// inbox is flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				p.closeWriter()
				return
			}
			p.write(m)
		default:
			p.closeWriter()
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("kafka write failed", "topic", p.topic, "key", string(m.Key), "error", err)
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.logger.Warn("kafka writer close", "topic", p.topic, "error", err)
	}
}

// Publish enqueues one message. It blocks only while the inbox is full.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the writer loop has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
