// Package library projects committed orders into the per-identity library
// cache read by the API.
package library

import (
	"context"
	"io"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	kafkax "github.com/ariefcatur/go-bookstore-engine/internal/kafka"
)

type Deduper interface {
	MarkProcessed(ctx context.Context, service, eventID string) (bool, error)
	Forget(ctx context.Context, service, eventID string) error
}

type Projection interface {
	AddToLibrary(ctx context.Context, identity bookstore.Identity, bookIDs ...string) error
	Purge(ctx context.Context) error
}

type Service struct {
	Dedup       Deduper
	Projection  Projection
	ServiceName string
	Logger      *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// HandleOrderCreated is installed as the order.created consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != bookstore.EventOrderCreated {
		return nil
	}
	return s.once(ctx, env.EventID, func() error {
		p, err := kafkax.UnwrapPayload[bookstore.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.Projection.AddToLibrary(ctx, p.User, p.DeliveredBookIDs...); err != nil {
			return err
		}
		s.logger().InfoContext(ctx, "library updated", "order_id", p.OrderID, "user", p.User, "books", len(p.DeliveredBookIDs))
		return nil
	})
}

// HandleCatalog drops the projection when the store was replaced; the API
// falls back to the store until new orders repopulate it.
func (s *Service) HandleCatalog(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != bookstore.EventCatalogImported && env.EventType != bookstore.EventStoreReset {
		return nil
	}
	return s.once(ctx, env.EventID, func() error {
		if err := s.Projection.Purge(ctx); err != nil {
			return err
		}
		s.logger().InfoContext(ctx, "library projection purged", "event_type", env.EventType)
		return nil
	})
}

func (s *Service) once(ctx context.Context, eventID string, fn func() error) error {
	first, err := s.Dedup.MarkProcessed(ctx, s.ServiceName, eventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	if err := fn(); err != nil {
		if ferr := s.Dedup.Forget(ctx, s.ServiceName, eventID); ferr != nil {
			s.logger().WarnContext(ctx, "release dedup key", "event_id", eventID, "error", ferr)
		}
		return err
	}
	return nil
}
