package engine

import "github.com/ariefcatur/go-bookstore-engine/internal/bookstore"

func (s *EngineSuite) seedShop() {
	s.addBook(BookInput{ID: "b1", Title: "One", Price: 10})
	s.addBook(BookInput{ID: "rare", Title: "Rare", Price: 20, SingleCopy: true})
	s.mint(alice, 100)
	s.addToCart(alice, "rare", 1)
	_, err := s.checkout(alice, "o1")
	s.Require().NoError(err)
	s.addToCart(alice, "b1", 2)
	_, err = s.eng.SendSupportMessage(s.ctx, alice, "where is my book")
	s.Require().NoError(err)
}

func (s *EngineSuite) TestExportImportRoundTrip() {
	s.seedShop()
	snap, err := s.eng.Export(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(snap.Books, 2)
	s.Len(snap.Sales, 1)
	s.Len(snap.Orders, 1)

	s.Require().NoError(s.eng.ResetStore(s.ctx, admin))
	s.Require().NoError(s.eng.Import(s.ctx, admin, snap))

	again, err := s.eng.Export(s.ctx, admin)
	s.Require().NoError(err)
	s.Equal(snap, again)

	// sold state survives the trip
	s.mint(bob, 100)
	s.requireCode(s.eng.AddToCart(s.ctx, bob, "rare", 1), bookstore.CodeSoldOut)
	s.Equal(int64(80), s.balance(alice))
}

func (s *EngineSuite) TestImportRejectsDuplicateKeys() {
	snap := bookstore.Snapshot{Books: []bookstore.Book{{ID: "x"}, {ID: "x"}}}
	s.requireCode(s.eng.Import(s.ctx, admin, snap), bookstore.CodeInvalidInput)
	s.requireCode(s.eng.Import(s.ctx, alice, bookstore.Snapshot{}), bookstore.CodeUnauthorized)
	_, err := s.eng.Export(s.ctx, alice)
	s.requireCode(err, bookstore.CodeUnauthorized)
}

func (s *EngineSuite) TestMergeLastWriteWins() {
	s.addBook(BookInput{ID: "shared", Title: "Current title", Price: 10})
	s.addBook(BookInput{ID: "current-only", Title: "Kept", Price: 3})
	s.mint(alice, 40)

	incoming := bookstore.Snapshot{
		Books: []bookstore.Book{
			{ID: "shared", Title: "Incoming title", Price: 12, Available: true},
			{ID: "incoming-only", Title: "New", Price: 1, Available: true},
		},
		Balances: []bookstore.Balance{{Identity: bob, Amount: 7}},
		Messages: []bookstore.SupportMessage{{ID: 41, Content: "imported", Author: bob}},
	}
	s.Require().NoError(s.eng.Merge(s.ctx, admin, incoming))

	snap, err := s.eng.Export(s.ctx, admin)
	s.Require().NoError(err)
	titles := map[string]string{}
	for _, b := range snap.Books {
		titles[b.ID] = b.Title
	}
	s.Equal(map[string]string{"shared": "Incoming title", "current-only": "Kept", "incoming-only": "New"}, titles)
	s.Equal(int64(40), s.balance(alice))
	s.Equal(int64(7), s.balance(bob))
	s.Equal(admin, snap.Settings.DesignatedOwner)

	id, err := s.eng.SendSupportMessage(s.ctx, bob, "after merge")
	s.Require().NoError(err)
	s.Equal(int64(42), id)

	s.Equal([]string{bookstore.EventCatalogImported}, s.pub.types())
}

func (s *EngineSuite) TestResetKeepsAdministration() {
	s.seedShop()
	s.Require().NoError(s.eng.AssignRole(s.ctx, admin, bob, bookstore.RoleAdmin))

	s.requireCode(s.eng.ResetStore(s.ctx, alice), bookstore.CodeUnauthorized)
	s.Require().NoError(s.eng.ResetStore(s.ctx, admin))

	snap, err := s.eng.Export(s.ctx, bob)
	s.Require().NoError(err)
	s.Empty(snap.Books)
	s.Empty(snap.Orders)
	s.Empty(snap.Balances)
	s.Len(snap.Roles, 2)
	s.Equal(admin, snap.Settings.DesignatedOwner)
	s.Equal(int64(1), snap.Settings.NextMessageID)
	s.Contains(s.pub.types(), bookstore.EventStoreReset)
}
