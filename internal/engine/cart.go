package engine

import (
	"context"
	"errors"
	"math"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// AddToCart adds quantity units of bookID, summing with an existing line.
func (e *Engine) AddToCart(ctx context.Context, caller bookstore.Identity, bookID string, quantity int64) error {
	if quantity <= 0 {
		return bookstore.Newf(bookstore.CodeInvalidInput, "quantity must be positive, got %d", quantity)
	}
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		b, err := tx.Book(ctx, bookID)
		if err != nil {
			return bookErr(err, bookID)
		}
		if !b.Available {
			return bookstore.Newf(bookstore.CodeSoldOut, "book %s is not available", bookID)
		}
		items, err := tx.Cart(ctx, caller)
		if err != nil {
			return translate(err, "load cart")
		}
		line := bookstore.CartItem{BookID: bookID, Quantity: quantity}
		for _, it := range items {
			if it.BookID != bookID {
				continue
			}
			if it.Quantity > math.MaxInt64-line.Quantity {
				return bookstore.Newf(bookstore.CodeInvalidInput, "quantity of book %s in cart would overflow", bookID)
			}
			line.Quantity += it.Quantity
		}
		return translate(tx.PutCartItem(ctx, caller, line), "store cart item")
	})
}

func (e *Engine) RemoveFromCart(ctx context.Context, caller bookstore.Identity, bookID string) error {
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		err := tx.RemoveCartItem(ctx, caller, bookID)
		if errors.Is(err, bookstore.ErrNotFound) {
			return bookstore.Wrap(err, bookstore.CodeNotFound, "book "+bookID+" is not in the cart")
		}
		return translate(err, "remove cart item")
	})
}

func (e *Engine) Cart(ctx context.Context, caller bookstore.Identity) ([]bookstore.CartItem, error) {
	var out []bookstore.CartItem
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		items, err := tx.Cart(ctx, caller)
		out = items
		return translate(err, "load cart")
	})
	if out == nil {
		out = []bookstore.CartItem{}
	}
	return out, err
}
