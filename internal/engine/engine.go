// Package engine is the bookstore transaction engine: roles, ledger,
// catalog, carts, KYC linkage, checkout and catalog transfer. Every
// operation runs in one store transaction and fails with a classified
// *bookstore.Error.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/metrics"
)

// DefaultProofTTL is how long a validated KYC proof can be consumed.
const DefaultProofTTL = 15 * time.Minute

// Publisher delivers events after a transaction commits.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env bookstore.Envelope) error
}

type Engine struct {
	store     bookstore.Store
	logger    *slog.Logger
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	proofTTL  time.Duration
	producer  string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithProofTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.proofTTL = ttl }
}

// WithProducerName sets the producer field of published envelopes.
func WithProducerName(name string) Option {
	return func(e *Engine) { e.producer = name }
}

func New(store bookstore.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("bookstore store is required")
	}
	e := &Engine{
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
		proofTTL: DefaultProofTTL,
		producer: "bookstore-engine",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.proofTTL <= 0 {
		return nil, fmt.Errorf("kyc proof ttl must be positive, got %s", e.proofTTL)
	}
	return e, nil
}

// translate maps store facts onto classified errors. Already classified
// errors pass through.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *bookstore.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, bookstore.ErrNotFound):
		return bookstore.Wrap(err, bookstore.CodeNotFound, msg)
	case errors.Is(err, bookstore.ErrConflict):
		return bookstore.Wrap(err, bookstore.CodeConflict, msg)
	case errors.Is(err, bookstore.ErrSoldOut):
		return bookstore.Wrap(err, bookstore.CodeSoldOut, msg)
	case errors.Is(err, bookstore.ErrInsufficientFunds):
		return bookstore.Wrap(err, bookstore.CodeInsufficientFunds, msg)
	case errors.Is(err, bookstore.ErrAlreadyBound):
		return bookstore.Wrap(err, bookstore.CodeKycAlreadyUsed, msg)
	case errors.Is(err, bookstore.ErrProofUnusable):
		return bookstore.Wrap(err, bookstore.CodeKycExpired, msg)
	case errors.Is(err, bookstore.ErrInvalidAmount):
		return bookstore.Wrap(err, bookstore.CodeInvalidInput, msg)
	}
	return bookstore.Wrap(err, bookstore.CodeInternal, msg)
}

func (e *Engine) publish(ctx context.Context, topic, eventType, key string, payload any) {
	if e.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode event payload", "event_type", eventType, "error", err)
		return
	}
	env := bookstore.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now(),
		Producer:      e.producer,
		CorrelationID: key,
		Payload:       body,
	}
	if err := e.publisher.Publish(ctx, topic, bookstore.PartitionKey(key), env); err != nil {
		// committed state is authoritative; consumers can rebuild from an export
		e.logger.WarnContext(ctx, "publish event failed", "event_type", eventType, "key", key, "error", err)
	}
}
