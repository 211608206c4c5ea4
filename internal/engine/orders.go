package engine

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func orderErr(err error, id string) error {
	if errors.Is(err, bookstore.ErrNotFound) {
		return bookstore.Wrap(err, bookstore.CodeNotFound, "order "+id+" not found")
	}
	return translate(err, "load order "+id)
}

// Order returns one order to its buyer or an admin.
func (e *Engine) Order(ctx context.Context, caller bookstore.Identity, orderID string) (bookstore.Order, error) {
	var out bookstore.Order
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return orderErr(err, orderID)
		}
		if err := requireSelfOrAdmin(ctx, tx, caller, o.User); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (e *Engine) UserOrders(ctx context.Context, caller, user bookstore.Identity) ([]bookstore.Order, error) {
	var out []bookstore.Order
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireSelfOrAdmin(ctx, tx, caller, user); err != nil {
			return err
		}
		orders, err := tx.OrdersBy(ctx, user)
		out = orders
		return translate(err, "list orders")
	})
	if out == nil {
		out = []bookstore.Order{}
	}
	return out, err
}

func (e *Engine) AllOrders(ctx context.Context, caller bookstore.Identity) ([]bookstore.Order, error) {
	var out []bookstore.Order
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		orders, err := tx.Orders(ctx)
		out = orders
		return translate(err, "list orders")
	})
	if out == nil {
		out = []bookstore.Order{}
	}
	return out, err
}

// Library lists the book ids delivered to user, oldest order first.
func (e *Engine) Library(ctx context.Context, caller, user bookstore.Identity) ([]string, error) {
	orders, err := e.UserOrders(ctx, caller, user)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, o := range orders {
		for _, id := range o.DeliveredBookIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// purchasedBook loads a book the caller received through orderID.
func (e *Engine) purchasedBook(ctx context.Context, caller bookstore.Identity, orderID, bookID string) (bookstore.Book, error) {
	var out bookstore.Book
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return orderErr(err, orderID)
		}
		if o.User != caller {
			return bookstore.New(bookstore.CodeUnauthorized, "order belongs to another account")
		}
		if !o.Delivers(bookID) {
			return bookstore.Newf(bookstore.CodeNotFound, "order %s did not deliver book %s", orderID, bookID)
		}
		b, err := tx.Book(ctx, bookID)
		if err != nil {
			return bookErr(err, bookID)
		}
		out = b
		return nil
	})
	return out, err
}

// PurchasedContent returns the text of a purchased book, nil if it has none.
func (e *Engine) PurchasedContent(ctx context.Context, caller bookstore.Identity, orderID, bookID string) (*string, error) {
	b, err := e.purchasedBook(ctx, caller, orderID, bookID)
	if err != nil {
		return nil, err
	}
	return b.Content, nil
}

func (e *Engine) PurchasedMedia(ctx context.Context, caller bookstore.Identity, orderID, bookID string) (bookstore.Media, error) {
	b, err := e.purchasedBook(ctx, caller, orderID, bookID)
	if err != nil {
		return bookstore.Media{}, err
	}
	return b.Media, nil
}
