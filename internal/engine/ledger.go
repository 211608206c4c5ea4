package engine

import (
	"context"
	"math"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// Mint credits amount tokens to id. Admin only.
func (e *Engine) Mint(ctx context.Context, caller, id bookstore.Identity, amount int64) error {
	if id == bookstore.Anonymous {
		return bookstore.New(bookstore.CodeInvalidInput, "recipient identity is required")
	}
	if amount <= 0 {
		return bookstore.Newf(bookstore.CodeInvalidInput, "mint amount must be positive, got %d", amount)
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		bal, err := tx.Balance(ctx, id)
		if err != nil {
			return translate(err, "load balance")
		}
		if bal > math.MaxInt64-amount {
			return bookstore.Newf(bookstore.CodeInvalidInput, "minting %d would overflow balance %d", amount, bal)
		}
		return translate(tx.Credit(ctx, id, amount), "credit balance")
	})
	if err != nil {
		return err
	}
	e.metrics.AddMinted(amount)
	e.logger.InfoContext(ctx, "tokens minted", "by", caller, "to", id, "amount", amount)
	return nil
}

// Balance is 0 for identities never seen.
func (e *Engine) Balance(ctx context.Context, id bookstore.Identity) (int64, error) {
	var bal int64
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		var err error
		bal, err = tx.Balance(ctx, id)
		return translate(err, "load balance")
	})
	return bal, err
}
