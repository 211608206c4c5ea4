package engine

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// SendSupportMessage files a message to the support inbox. Guests may write too.
func (e *Engine) SendSupportMessage(ctx context.Context, caller bookstore.Identity, content string) (int64, error) {
	return e.appendMessage(ctx, caller, content, nil)
}

func (e *Engine) RespondToMessage(ctx context.Context, caller bookstore.Identity, messageID int64, response string) error {
	_, err := e.appendMessage(ctx, caller, response, &messageID)
	return err
}

func (e *Engine) appendMessage(ctx context.Context, caller bookstore.Identity, content string, responseTo *int64) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, bookstore.New(bookstore.CodeInvalidInput, "message content is required")
	}
	var id int64
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if responseTo != nil {
			if err := requireAdmin(ctx, tx, caller); err != nil {
				return err
			}
			if _, err := findMessage(ctx, tx, *responseTo); err != nil {
				return err
			}
		}
		s, err := tx.Settings(ctx)
		if err != nil {
			return translate(err, "load settings")
		}
		id = max(s.NextMessageID, 1)
		err = tx.InsertMessage(ctx, bookstore.SupportMessage{
			ID:              id,
			Content:         content,
			Author:          caller,
			Timestamp:       e.now(),
			ResponseTo:      responseTo,
			IsAdminResponse: responseTo != nil,
		})
		if err != nil {
			return translate(err, "insert message")
		}
		s.NextMessageID = id + 1
		return translate(tx.PutSettings(ctx, s), "store settings")
	})
	return id, err
}

func findMessage(ctx context.Context, tx bookstore.Tx, id int64) (bookstore.SupportMessage, error) {
	msgs, err := tx.Messages(ctx)
	if err != nil {
		return bookstore.SupportMessage{}, translate(err, "list messages")
	}
	for _, m := range msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return bookstore.SupportMessage{}, bookstore.Newf(bookstore.CodeNotFound, "message %d not found", id)
}

// UserMessages lists the caller's messages, or every message for admins.
// Responses to those messages are included on request.
func (e *Engine) UserMessages(ctx context.Context, caller bookstore.Identity, includeResponses bool) ([]bookstore.SupportMessage, error) {
	out := []bookstore.SupportMessage{}
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		role, err := roleOf(ctx, tx, caller)
		if err != nil {
			return err
		}
		msgs, err := tx.Messages(ctx)
		if err != nil {
			return translate(err, "list messages")
		}
		mine := make(map[int64]bool)
		for _, m := range msgs {
			if m.ResponseTo != nil {
				continue
			}
			if role == bookstore.RoleAdmin || (caller != bookstore.Anonymous && m.Author == caller) {
				mine[m.ID] = true
				out = append(out, m)
			}
		}
		if includeResponses {
			for _, m := range msgs {
				if m.ResponseTo != nil && mine[*m.ResponseTo] {
					out = append(out, m)
				}
			}
		}
		return nil
	})
	return out, err
}

// MessageResponses lists replies to one message; visible to its author and admins.
func (e *Engine) MessageResponses(ctx context.Context, caller bookstore.Identity, messageID int64) ([]bookstore.SupportMessage, error) {
	out := []bookstore.SupportMessage{}
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		orig, err := findMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if err := requireSelfOrAdmin(ctx, tx, caller, orig.Author); err != nil {
			return err
		}
		msgs, err := tx.Messages(ctx)
		if err != nil {
			return translate(err, "list messages")
		}
		for _, m := range msgs {
			if m.ResponseTo != nil && *m.ResponseTo == messageID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}
