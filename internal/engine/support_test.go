package engine

import (
	"math"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/memstore"
)

func (s *EngineSuite) TestSupportThread() {
	first, err := s.eng.SendSupportMessage(s.ctx, alice, "  refund please ")
	s.Require().NoError(err)
	s.Equal(int64(1), first)
	guest, err := s.eng.SendSupportMessage(s.ctx, bookstore.Anonymous, "hello from a guest")
	s.Require().NoError(err)
	s.Equal(int64(2), guest)
	_, err = s.eng.SendSupportMessage(s.ctx, alice, " ")
	s.requireCode(err, bookstore.CodeInvalidInput)

	s.requireCode(s.eng.RespondToMessage(s.ctx, bob, first, "no"), bookstore.CodeUnauthorized)
	s.requireCode(s.eng.RespondToMessage(s.ctx, admin, 99, "hm"), bookstore.CodeNotFound)
	s.Require().NoError(s.eng.RespondToMessage(s.ctx, admin, first, "done"))

	mine, err := s.eng.UserMessages(s.ctx, alice, false)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("refund please", mine[0].Content)

	withReplies, err := s.eng.UserMessages(s.ctx, alice, true)
	s.Require().NoError(err)
	s.Require().Len(withReplies, 2)
	s.True(withReplies[1].IsAdminResponse)
	s.Equal(first, *withReplies[1].ResponseTo)

	all, err := s.eng.UserMessages(s.ctx, admin, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	guestView, err := s.eng.UserMessages(s.ctx, bookstore.Anonymous, true)
	s.Require().NoError(err)
	s.Empty(guestView)

	replies, err := s.eng.MessageResponses(s.ctx, alice, first)
	s.Require().NoError(err)
	s.Require().Len(replies, 1)
	s.Equal("done", replies[0].Content)
	_, err = s.eng.MessageResponses(s.ctx, bob, first)
	s.requireCode(err, bookstore.CodeUnauthorized)
}

func (s *EngineSuite) TestRolesAndRecovery() {
	role, err := s.eng.Role(s.ctx, bookstore.Anonymous)
	s.Require().NoError(err)
	s.Equal(bookstore.RoleGuest, role)
	role, err = s.eng.Role(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(bookstore.RoleUser, role)

	s.requireCode(s.eng.RecoverAdminAccess(s.ctx, admin), bookstore.CodeRecoveryUnavailable)
	s.requireCode(s.eng.AssignRole(s.ctx, alice, bob, bookstore.RoleAdmin), bookstore.CodeUnauthorized)
	s.requireCode(s.eng.AssignRole(s.ctx, admin, bob, "root"), bookstore.CodeInvalidInput)

	s.Require().NoError(s.eng.AssignRole(s.ctx, admin, alice, bookstore.RoleGuest))
	s.requireCode(s.eng.AddToCart(s.ctx, alice, "any", 1), bookstore.CodeUnauthorized)

	// a fresh store can only be claimed by its designated owner
	fresh, err := New(s.store)
	s.Require().NoError(err)
	s.Require().NoError(fresh.AssignRole(s.ctx, admin, admin, bookstore.RoleUser))
	s.requireCode(fresh.RecoverAdminAccess(s.ctx, bob), bookstore.CodeUnauthorized)
	s.Require().NoError(fresh.RecoverAdminAccess(s.ctx, admin))
	ok, err := fresh.IsAdmin(s.ctx, admin)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *EngineSuite) TestRecoveryWithoutOwner() {
	eng, err := New(memstore.New())
	s.Require().NoError(err)
	s.requireCode(eng.RecoverAdminAccess(s.ctx, alice), bookstore.CodeRecoveryUnavailable)
	s.Require().NoError(eng.SeedDesignatedOwner(s.ctx, alice))
	s.Require().NoError(eng.SeedDesignatedOwner(s.ctx, bob))
	owner, err := eng.DesignatedOwner(s.ctx)
	s.Require().NoError(err)
	s.Equal(alice, owner, "seeding never replaces a recorded owner")
	s.Require().NoError(eng.RecoverAdminAccess(s.ctx, alice))
}

func (s *EngineSuite) TestProfiles() {
	p, err := s.eng.Profile(s.ctx, alice, alice)
	s.Require().NoError(err)
	s.Nil(p)

	s.requireCode(s.eng.SaveProfile(s.ctx, alice, " "), bookstore.CodeInvalidInput)
	s.Require().NoError(s.eng.SaveProfile(s.ctx, alice, "Alice"))
	p, err = s.eng.Profile(s.ctx, admin, alice)
	s.Require().NoError(err)
	s.Equal("Alice", p.Name)

	_, err = s.eng.Profile(s.ctx, bob, alice)
	s.requireCode(err, bookstore.CodeUnauthorized)
}

func (s *EngineSuite) TestMintAndOrderAccess() {
	s.requireCode(s.eng.Mint(s.ctx, alice, alice, 10), bookstore.CodeUnauthorized)
	s.requireCode(s.eng.Mint(s.ctx, admin, alice, 0), bookstore.CodeInvalidInput)
	s.requireCode(s.eng.Mint(s.ctx, admin, bookstore.Anonymous, 5), bookstore.CodeInvalidInput)
	s.Equal(int64(0), s.balance(carol))

	s.addBook(BookInput{ID: "b1", Price: 4})
	s.mint(alice, 4)
	s.addToCart(alice, "b1", 1)
	_, err := s.checkout(alice, "o1")
	s.Require().NoError(err)

	o, err := s.eng.Order(s.ctx, alice, "o1")
	s.Require().NoError(err)
	s.Equal(alice, o.User)
	_, err = s.eng.Order(s.ctx, bob, "o1")
	s.requireCode(err, bookstore.CodeUnauthorized)
	_, err = s.eng.Order(s.ctx, admin, "nope")
	s.requireCode(err, bookstore.CodeNotFound)

	_, err = s.eng.UserOrders(s.ctx, bob, alice)
	s.requireCode(err, bookstore.CodeUnauthorized)
	_, err = s.eng.AllOrders(s.ctx, alice)
	s.requireCode(err, bookstore.CodeUnauthorized)
	none, err := s.eng.UserOrders(s.ctx, bob, bob)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *EngineSuite) TestMintOverflow() {
	s.mint(alice, math.MaxInt64)
	s.requireCode(s.eng.Mint(s.ctx, admin, alice, 10), bookstore.CodeInvalidInput)
	s.Equal(int64(math.MaxInt64), s.balance(alice))
}
