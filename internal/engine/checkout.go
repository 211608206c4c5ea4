package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

const checkoutOK = "Order placed successfully"

type CheckoutRequest struct {
	OrderID       string             `json:"order_id"`
	Identity      bookstore.Identity `json:"-"`
	KycIdentifier string             `json:"kyc_identifier"`
	KycProofValid bool               `json:"kyc_proof_valid"`
}

type line struct {
	item bookstore.CartItem
	book bookstore.Book
}

// Checkout turns the caller's cart into an order. Every precondition is
// checked before the first mutation; the commit phase then reserves scarce
// books, debits the balance, binds the KYC identifier, clears the cart and
// appends the order, all in one store transaction.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (string, *bookstore.Order, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.KycIdentifier = strings.TrimSpace(req.KycIdentifier)
	if req.OrderID == "" {
		return "", nil, bookstore.New(bookstore.CodeInvalidInput, "order id is required")
	}

	now := e.now()
	var (
		order      bookstore.Order
		restricted bool
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, req.Identity); err != nil {
			return err
		}
		lines, err := e.validateCheckout(ctx, tx, req)
		if err != nil {
			return err
		}

		total, err := orderTotal(lines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			restricted = restricted || l.book.KycRestricted
		}
		bal, err := tx.Balance(ctx, req.Identity)
		if err != nil {
			return translate(err, "load balance")
		}
		if bal < total {
			return bookstore.Newf(bookstore.CodeInsufficientFunds, "order total %d exceeds balance %d", total, bal)
		}
		if restricted {
			if err := checkRestrictedPurchase(ctx, tx, req, now); err != nil {
				return err
			}
		}

		// commit phase
		if err := e.reserveAll(ctx, tx, req, lines, now); err != nil {
			return err
		}
		if total > 0 {
			if err := tx.Debit(ctx, req.Identity, total); err != nil {
				return translate(err, "debit balance")
			}
		}
		if restricted {
			if err := tx.BindKyc(ctx, req.KycIdentifier, req.Identity, req.OrderID, now); err != nil {
				if errors.Is(err, bookstore.ErrAlreadyBound) {
					return bookstore.Wrap(err, bookstore.CodeKycAlreadyUsed, "this verified identity has already purchased a kyc-restricted book")
				}
				return translate(err, "bind kyc identifier")
			}
		}
		if err := tx.ClearCart(ctx, req.Identity); err != nil {
			return translate(err, "clear cart")
		}

		order = bookstore.Order{
			OrderID:          req.OrderID,
			User:             req.Identity,
			TotalAmount:      total,
			Timestamp:        now,
			Items:            make([]bookstore.CartItem, 0, len(lines)),
			DeliveredBookIDs: make([]string, 0, len(lines)),
		}
		for _, l := range lines {
			order.Items = append(order.Items, l.item)
			order.DeliveredBookIDs = append(order.DeliveredBookIDs, l.book.ID)
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			if errors.Is(err, bookstore.ErrConflict) {
				return bookstore.Wrap(err, bookstore.CodeDuplicateOrder, "order "+req.OrderID+" already exists")
			}
			return translate(err, "insert order")
		}
		return nil
	})
	if err != nil {
		code := bookstore.CodeOf(err)
		e.metrics.ObserveCheckout(string(code))
		e.logger.InfoContext(ctx, "checkout rejected", "order_id", req.OrderID, "identity", req.Identity, "code", code)
		return "", nil, err
	}

	e.metrics.ObserveCheckout("ok")
	e.logger.InfoContext(ctx, "order created", "order_id", order.OrderID, "identity", order.User,
		"total", order.TotalAmount, "books", len(order.DeliveredBookIDs))
	e.publish(ctx, bookstore.TopicOrderCreated, bookstore.EventOrderCreated, order.OrderID, bookstore.OrderCreatedPayload{
		OrderID:          order.OrderID,
		User:             order.User,
		Items:            order.Items,
		TotalAmount:      order.TotalAmount,
		DeliveredBookIDs: order.DeliveredBookIDs,
	})
	if restricted {
		e.publish(ctx, bookstore.TopicKycBound, bookstore.EventKycBound, req.KycIdentifier, bookstore.KycBoundPayload{
			Identifier: req.KycIdentifier,
			User:       req.Identity,
			OrderID:    order.OrderID,
		})
	}
	return checkoutOK, &order, nil
}

// validateCheckout runs the order id, cart, book and quantity checks.
func (e *Engine) validateCheckout(ctx context.Context, tx bookstore.Tx, req CheckoutRequest) ([]line, error) {
	_, err := tx.Order(ctx, req.OrderID)
	switch {
	case err == nil:
		return nil, bookstore.Newf(bookstore.CodeDuplicateOrder, "order %s already exists", req.OrderID)
	case !errors.Is(err, bookstore.ErrNotFound):
		return nil, translate(err, "load order")
	}

	items, err := tx.Cart(ctx, req.Identity)
	if err != nil {
		return nil, translate(err, "load cart")
	}
	if len(items) == 0 {
		return nil, bookstore.New(bookstore.CodeEmptyCart, "cart is empty")
	}

	lines := make([]line, 0, len(items))
	for _, it := range items {
		b, err := tx.Book(ctx, it.BookID)
		if err != nil {
			return nil, bookErr(err, it.BookID)
		}
		lines = append(lines, line{item: it, book: b})
	}
	for _, l := range lines {
		if l.book.SingleCopy && l.item.Quantity != 1 {
			return nil, bookstore.Newf(bookstore.CodeInvalidQuantityForSingleCopy,
				"book %s is a single copy, quantity must be 1 (got %d)", l.book.ID, l.item.Quantity)
		}
	}
	return lines, nil
}

// orderTotal sums price times quantity, refusing totals beyond int64.
func orderTotal(lines []line) (int64, error) {
	var total int64
	for _, l := range lines {
		if l.item.Quantity <= 0 || l.book.Price < 0 {
			return 0, bookstore.Newf(bookstore.CodeInvalidInput, "invalid line for book %s", l.book.ID)
		}
		if l.book.Price > (math.MaxInt64-total)/l.item.Quantity {
			return 0, bookstore.Newf(bookstore.CodeInvalidInput, "order total overflows at book %s", l.book.ID)
		}
		total += l.book.Price * l.item.Quantity
	}
	return total, nil
}

// reserveAll reserves every scarce line. When one reservation loses, the
// ones already taken by this order are released before failing.
func (e *Engine) reserveAll(ctx context.Context, tx bookstore.Tx, req CheckoutRequest, lines []line, now time.Time) error {
	reserved := make([]string, 0, len(lines))
	for _, l := range lines {
		if !l.book.SingleCopy {
			continue
		}
		err := tx.MarkSold(ctx, bookstore.Sale{BookID: l.book.ID, OrderID: req.OrderID, Buyer: req.Identity, SoldAt: now})
		if err == nil {
			reserved = append(reserved, l.book.ID)
			continue
		}
		e.release(ctx, tx, req.OrderID, reserved)
		if errors.Is(err, bookstore.ErrSoldOut) {
			return bookstore.Wrap(err, bookstore.CodeSoldOut, "book "+l.book.ID+" is sold out")
		}
		return bookErr(err, l.book.ID)
	}
	return nil
}

func (e *Engine) release(ctx context.Context, tx bookstore.Tx, orderID string, bookIDs []string) {
	for i := len(bookIDs) - 1; i >= 0; i-- {
		if err := tx.Unsell(ctx, bookIDs[i], orderID); err != nil {
			e.logger.ErrorContext(ctx, "release reservation", "order_id", orderID, "book_id", bookIDs[i], "error", err)
		}
	}
}
