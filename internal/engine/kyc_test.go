package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

const passport = "ID-7781234"

func (s *EngineSuite) restrictedBook(id string) {
	s.addBook(BookInput{ID: id, Price: 10, KycRestricted: true})
}

func (s *EngineSuite) TestRestrictedPurchaseBindsIdentifier() {
	s.restrictedBook("B2")
	s.mint(alice, 50)
	s.mint(carol, 50)

	msg, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)
	s.Equal("KYC proof accepted", msg)
	st, err := s.eng.KycState(s.ctx, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycValidatedProof, st)

	s.addToCart(alice, "B2", 1)
	_, err = s.checkoutKyc(alice, "oa", passport)
	s.Require().NoError(err)

	st, err = s.eng.KycState(s.ctx, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycBound, st)
	s.Equal([]string{bookstore.EventOrderCreated, bookstore.EventKycBound}, s.pub.types())

	// a different account reusing the identifier is refused
	_, err = s.eng.SubmitProof(s.ctx, carol, passport, true)
	s.Require().NoError(err)
	s.addToCart(carol, "B2", 1)
	_, err = s.checkoutKyc(carol, "oc", passport)
	s.requireCode(err, bookstore.CodeKycAlreadyUsed)
	s.Equal(int64(50), s.balance(carol))
}

func (s *EngineSuite) TestOneRestrictedPurchasePerIdentity() {
	s.restrictedBook("B2")
	s.restrictedBook("B3")
	s.mint(alice, 50)

	_, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)
	s.addToCart(alice, "B2", 1)
	_, err = s.checkoutKyc(alice, "o1", passport)
	s.Require().NoError(err)

	const other = "BC-5550001"
	_, err = s.eng.SubmitProof(s.ctx, alice, other, true)
	s.Require().NoError(err)
	s.addToCart(alice, "B3", 1)
	_, err = s.checkoutKyc(alice, "o2", other)
	s.requireCode(err, bookstore.CodeKycAlreadyUsed)
	s.Equal(int64(40), s.balance(alice))
}

func (s *EngineSuite) TestRestrictedPurchaseNeedsProof() {
	s.restrictedBook("B2")
	s.mint(alice, 50)
	s.mint(bob, 50)
	s.addToCart(alice, "B2", 1)

	_, err := s.checkout(alice, "o1")
	s.requireCode(err, bookstore.CodeKycRequired)

	_, err = s.checkoutKyc(alice, "o1", passport)
	s.requireCode(err, bookstore.CodeKycRequired)

	// a proof submitted by someone else does not count
	_, err = s.eng.SubmitProof(s.ctx, bob, passport, true)
	s.Require().NoError(err)
	_, err = s.checkoutKyc(alice, "o1", passport)
	s.requireCode(err, bookstore.CodeKycRequired)

	s.Equal(int64(50), s.balance(alice))
}

func (s *EngineSuite) TestRejectedProof() {
	_, err := s.eng.SubmitProof(s.ctx, alice, passport, false)
	s.requireCode(err, bookstore.CodeKycRequired)

	st, err := s.eng.KycState(s.ctx, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycRejected, st)

	_, err = s.eng.SubmitProof(s.ctx, alice, "ID-12", true)
	s.requireCode(err, bookstore.CodeInvalidInput)
	_, err = s.eng.SubmitProof(s.ctx, bookstore.Anonymous, passport, true)
	s.requireCode(err, bookstore.CodeUnauthorized)
}

func (s *EngineSuite) TestExpiredProof() {
	s.restrictedBook("B2")
	s.mint(alice, 50)
	s.addToCart(alice, "B2", 1)
	_, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)

	s.now = s.now.Add(DefaultProofTTL + time.Second)
	st, err := s.eng.KycState(s.ctx, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycAwaitingProof, st)

	_, err = s.checkoutKyc(alice, "o1", passport)
	s.requireCode(err, bookstore.CodeKycExpired)
	s.Equal(bookstore.CodeKycRequired, bookstore.CodeOf(err).Class())

	_, err = s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)
	_, err = s.checkoutKyc(alice, "o1", passport)
	s.Require().NoError(err)
}

func (s *EngineSuite) TestPendingProofBelongsToSubmitter() {
	s.restrictedBook("B2")
	s.mint(alice, 50)
	s.addToCart(alice, "B2", 1)
	_, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)

	_, err = s.eng.SubmitProof(s.ctx, bob, passport, true)
	s.requireCode(err, bookstore.CodeConflict)
	_, err = s.checkoutKyc(alice, "o1", passport)
	s.Require().NoError(err)
}

func (s *EngineSuite) TestExpiredPendingProofCanBeReplaced() {
	_, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)
	s.now = s.now.Add(DefaultProofTTL + time.Second)

	_, err = s.eng.SubmitProof(s.ctx, bob, passport, true)
	s.Require().NoError(err)
}

func (s *EngineSuite) TestBlacklist() {
	s.restrictedBook("B2")
	s.mint(alice, 50)
	_, err := s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.Require().NoError(err)

	_, err = s.eng.Blacklist(s.ctx, alice, passport)
	s.requireCode(err, bookstore.CodeUnauthorized)

	st, err := s.eng.Blacklist(s.ctx, admin, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycPermanentlyBlacklisted, st)

	s.addToCart(alice, "B2", 1)
	_, err = s.checkoutKyc(alice, "o1", passport)
	s.requireCode(err, bookstore.CodeBlacklisted)

	_, err = s.eng.SubmitProof(s.ctx, alice, passport, true)
	s.requireCode(err, bookstore.CodeBlacklisted)

	st, err = s.eng.RejectProof(s.ctx, admin, passport)
	s.Require().NoError(err)
	s.Equal(bookstore.KycPermanentlyBlacklisted, st, "a blacklist is never lifted")
}

func (s *EngineSuite) TestConcurrentRestrictedCheckoutsBindOnce() {
	const buyers = 8
	for i := 0; i < buyers; i++ {
		s.restrictedBook(fmt.Sprintf("R%d", i))
	}
	// every buyer presents the same document
	ids := make([]bookstore.Identity, buyers)
	for i := range ids {
		ids[i] = bookstore.Identity(fmt.Sprintf("buyer-%d", i))
		s.mint(ids[i], 10)
		s.addToCart(ids[i], fmt.Sprintf("R%d", i), 1)
	}

	var bound atomic.Int32
	var g errgroup.Group
	for i, id := range ids {
		orderID := fmt.Sprintf("o-%d", i)
		g.Go(func() error {
			if _, err := s.eng.SubmitProof(s.ctx, id, passport, true); err != nil && bookstore.CodeOf(err) != bookstore.CodeConflict {
				return err
			}
			_, err := s.checkoutKyc(id, orderID, passport)
			switch bookstore.CodeOf(err) {
			case "":
				bound.Add(1)
			case bookstore.CodeKycAlreadyUsed, bookstore.CodeKycRequired:
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), bound.Load())

	orders, err := s.eng.AllOrders(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(orders, int(bound.Load()))
}
