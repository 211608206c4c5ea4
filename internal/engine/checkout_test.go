package engine

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func (s *EngineSuite) TestCheckoutHappyPath() {
	s.addBook(BookInput{ID: "b1", Price: 10})
	s.addBook(BookInput{ID: "rare", Price: 25, SingleCopy: true})
	s.mint(alice, 100)
	s.addToCart(alice, "b1", 2)
	s.addToCart(alice, "b1", 1)
	s.addToCart(alice, "rare", 1)

	msg, order, err := s.eng.Checkout(s.ctx, CheckoutRequest{OrderID: "o-1", Identity: alice})
	s.Require().NoError(err)
	s.Equal("Order placed successfully", msg)
	s.Equal(int64(55), order.TotalAmount)
	s.Equal([]bookstore.CartItem{{BookID: "b1", Quantity: 3}, {BookID: "rare", Quantity: 1}}, order.Items)
	s.Equal([]string{"b1", "rare"}, order.DeliveredBookIDs)
	s.Equal(s.now, order.Timestamp)

	s.Equal(int64(45), s.balance(alice))
	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Empty(cart)

	rare, err := s.eng.Book(s.ctx, admin, "rare")
	s.Require().NoError(err)
	s.False(rare.Available)
	b1, err := s.eng.Book(s.ctx, admin, "b1")
	s.Require().NoError(err)
	s.True(b1.Available, "multi-copy books stay available")

	s.Equal([]string{bookstore.EventOrderCreated}, s.pub.types())
}

func (s *EngineSuite) TestCheckoutPreconditionOrder() {
	s.addBook(BookInput{ID: "rare", Price: 10, SingleCopy: true})
	s.mint(alice, 5)

	_, err := s.checkout(alice, "o-1")
	s.requireCode(err, bookstore.CodeEmptyCart)
	s.Equal(bookstore.CodeInvalidInput, bookstore.CodeOf(err).Class())

	s.addToCart(alice, "rare", 2)
	_, err = s.checkout(alice, "o-1")
	s.requireCode(err, bookstore.CodeInvalidQuantityForSingleCopy)

	s.Require().NoError(s.eng.RemoveFromCart(s.ctx, alice, "rare"))
	s.addToCart(alice, "rare", 1)
	_, err = s.checkout(alice, "o-1")
	s.requireCode(err, bookstore.CodeInsufficientFunds)

	s.Equal(int64(5), s.balance(alice))
	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Len(cart, 1, "failed checkout keeps the cart")
	s.Empty(s.pub.types())
}

func (s *EngineSuite) TestCheckoutBookDeletedAfterCarting() {
	s.addBook(BookInput{ID: "b1", Price: 1})
	s.mint(alice, 10)
	s.addToCart(alice, "b1", 1)
	s.Require().NoError(s.eng.DeleteBook(s.ctx, admin, "b1"))

	_, err := s.checkout(alice, "o-1")
	s.requireCode(err, bookstore.CodeBookNotFound)
	s.Equal(int64(10), s.balance(alice))
}

func (s *EngineSuite) TestCheckoutRequiresSignedInUser() {
	_, err := s.checkout(bookstore.Anonymous, "o-1")
	s.requireCode(err, bookstore.CodeUnauthorized)

	_, _, err = s.eng.Checkout(s.ctx, CheckoutRequest{OrderID: "  ", Identity: alice})
	s.requireCode(err, bookstore.CodeInvalidInput)
}

func (s *EngineSuite) TestDuplicateOrderIsIdempotent() {
	s.addBook(BookInput{ID: "b1", Price: 10})
	s.mint(alice, 100)
	s.addToCart(alice, "b1", 1)
	_, err := s.checkout(alice, "o-1")
	s.Require().NoError(err)

	s.addToCart(alice, "b1", 1)
	_, err = s.checkout(alice, "o-1")
	s.requireCode(err, bookstore.CodeDuplicateOrder)
	s.Equal(bookstore.CodeConflict, bookstore.CodeOf(err).Class())

	s.Equal(int64(90), s.balance(alice))
	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]bookstore.CartItem{{BookID: "b1", Quantity: 1}}, cart)

	// another buyer cannot reuse the id either
	s.mint(bob, 10)
	s.addToCart(bob, "b1", 1)
	_, err = s.checkout(bob, "o-1")
	s.requireCode(err, bookstore.CodeDuplicateOrder)
	s.Equal(int64(10), s.balance(bob))
}

func (s *EngineSuite) TestConcurrentSingleCopyCheckouts() {
	const buyers = 16
	s.addBook(BookInput{ID: "B1", Price: 100, SingleCopy: true})
	for i := 0; i < buyers; i++ {
		id := bookstore.Identity(fmt.Sprintf("buyer-%d", i))
		s.mint(id, 100)
		s.addToCart(id, "B1", 1)
	}

	var won, soldOut atomic.Int32
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		id := bookstore.Identity(fmt.Sprintf("buyer-%d", i))
		orderID := fmt.Sprintf("order-%d", i)
		g.Go(func() error {
			_, err := s.checkout(id, orderID)
			switch bookstore.CodeOf(err) {
			case "":
				won.Add(1)
			case bookstore.CodeSoldOut:
				soldOut.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), won.Load())
	s.Equal(int32(buyers-1), soldOut.Load())

	var spent int
	for i := 0; i < buyers; i++ {
		switch s.balance(bookstore.Identity(fmt.Sprintf("buyer-%d", i))) {
		case 0:
			spent++
		case 100:
		default:
			s.Fail("balance must be 0 or 100")
		}
	}
	s.Equal(1, spent)

	orders, err := s.eng.AllOrders(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *EngineSuite) TestScenarioTwoBuyersOneCopy() {
	s.addBook(BookInput{ID: "B1", Price: 100, SingleCopy: true})
	s.mint(alice, 100)
	s.mint(bob, 100)
	s.addToCart(alice, "B1", 1)
	s.addToCart(bob, "B1", 1)

	errs := make(map[bookstore.Identity]error)
	var g errgroup.Group
	results := make(chan struct {
		id  bookstore.Identity
		err error
	}, 2)
	for id, orderID := range map[bookstore.Identity]string{alice: "oa", bob: "ob"} {
		g.Go(func() error {
			_, err := s.checkout(id, orderID)
			results <- struct {
				id  bookstore.Identity
				err error
			}{id, err}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	close(results)
	for r := range results {
		errs[r.id] = r.err
	}

	winner, loser := alice, bob
	if errs[alice] != nil {
		winner, loser = bob, alice
	}
	s.NoError(errs[winner])
	s.requireCode(errs[loser], bookstore.CodeSoldOut)
	s.Equal(int64(0), s.balance(winner))
	s.Equal(int64(100), s.balance(loser))

	lib, err := s.eng.Library(s.ctx, winner, winner)
	s.Require().NoError(err)
	s.Equal([]string{"B1"}, lib)
	lib, err = s.eng.Library(s.ctx, loser, loser)
	s.Require().NoError(err)
	s.Empty(lib)
}

func (s *EngineSuite) TestSoldOutReleasesEarlierReservations() {
	s.addBook(BookInput{ID: "first", Price: 1, SingleCopy: true})
	s.addBook(BookInput{ID: "second", Price: 1, SingleCopy: true})
	s.mint(alice, 10)
	s.mint(bob, 10)
	s.addToCart(alice, "first", 1)
	s.addToCart(alice, "second", 1)
	s.addToCart(bob, "second", 1)
	_, err := s.checkout(bob, "ob")
	s.Require().NoError(err)

	_, err = s.checkout(alice, "oa")
	s.requireCode(err, bookstore.CodeSoldOut)

	first, err := s.eng.Book(s.ctx, admin, "first")
	s.Require().NoError(err)
	s.True(first.Available, "a lost checkout must not keep earlier reservations")
	s.Equal(int64(10), s.balance(alice))

	s.Require().NoError(s.eng.RemoveFromCart(s.ctx, alice, "second"))
	_, err = s.checkout(alice, "oa")
	s.Require().NoError(err)
}

func (s *EngineSuite) TestBalanceNeverNegative() {
	s.addBook(BookInput{ID: "b1", Price: 7})
	s.mint(alice, 20)

	var g errgroup.Group
	var ok atomic.Int32
	for i := 0; i < 10; i++ {
		orderID := fmt.Sprintf("o-%d", i)
		g.Go(func() error {
			if err := s.eng.AddToCart(context.Background(), alice, "b1", 1); err != nil {
				return err
			}
			_, err := s.checkout(alice, orderID)
			if err == nil {
				ok.Add(1)
				return nil
			}
			switch bookstore.CodeOf(err) {
			case bookstore.CodeInsufficientFunds, bookstore.CodeEmptyCart:
				return nil
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())
	s.GreaterOrEqual(s.balance(alice), int64(0))

	orders, err := s.eng.UserOrders(s.ctx, alice, alice)
	s.Require().NoError(err)
	var spent int64
	for _, o := range orders {
		spent += o.TotalAmount
	}
	s.Equal(int64(20)-spent, s.balance(alice))
	s.Equal(int(ok.Load()), len(orders))
}

func (s *EngineSuite) TestCheckoutRejectsOverflowingTotal() {
	s.addBook(BookInput{ID: "cheap", Price: 2})
	s.mint(alice, 10)
	s.addToCart(alice, "cheap", math.MaxInt64-49)

	_, err := s.checkout(alice, "o1")
	s.requireCode(err, bookstore.CodeInvalidInput)
	s.Equal(int64(10), s.balance(alice))

	orders, err := s.eng.UserOrders(s.ctx, alice, alice)
	s.Require().NoError(err)
	s.Empty(orders)
	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Len(cart, 1)
}

func (s *EngineSuite) TestCartQuantityOverflow() {
	s.addBook(BookInput{ID: "b1", Price: 1})
	s.addToCart(alice, "b1", math.MaxInt64)
	s.requireCode(s.eng.AddToCart(s.ctx, alice, "b1", 1), bookstore.CodeInvalidInput)

	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(cart, 1)
	s.Equal(int64(math.MaxInt64), cart[0].Quantity)
}

func (s *EngineSuite) TestFreeBookCheckout() {
	s.addBook(BookInput{ID: "free", Price: 0})
	s.addToCart(alice, "free", 3)

	o, err := s.checkout(alice, "o1")
	s.Require().NoError(err)
	s.Equal(int64(0), o.TotalAmount)
	s.Equal(int64(0), s.balance(alice))
}
