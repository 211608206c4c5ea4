package engine

import "github.com/ariefcatur/go-bookstore-engine/internal/bookstore"

func strPtr(s string) *string { return &s }

func (s *EngineSuite) TestAddBookValidation() {
	err := s.eng.AddBook(s.ctx, alice, BookInput{ID: "b1", Price: 1})
	s.requireCode(err, bookstore.CodeUnauthorized)

	err = s.eng.AddBook(s.ctx, admin, BookInput{ID: " ", Price: 1})
	s.requireCode(err, bookstore.CodeInvalidInput)
	err = s.eng.AddBook(s.ctx, admin, BookInput{ID: "b1", Price: -1})
	s.requireCode(err, bookstore.CodeInvalidInput)

	s.addBook(BookInput{ID: "b1", Price: 1})
	err = s.eng.AddBook(s.ctx, admin, BookInput{ID: "b1", Price: 2})
	s.requireCode(err, bookstore.CodeConflict)

	b, err := s.eng.Book(s.ctx, admin, "b1")
	s.Require().NoError(err)
	s.True(b.Available)
	s.Equal(int64(1), b.Price)
}

func (s *EngineSuite) TestPublicViewHidesPurchasableContent() {
	s.addBook(BookInput{ID: "b1", Price: 5, Content: strPtr("chapter one")})
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaPDF, "blob://pdf"))
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaAudio, "blob://a1"))
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaImage, "blob://cover"))

	for _, caller := range []bookstore.Identity{bookstore.Anonymous, alice} {
		b, err := s.eng.Book(s.ctx, caller, "b1")
		s.Require().NoError(err)
		s.Nil(b.Content)
		s.Empty(b.Media.PDF)
		s.Empty(b.Media.Audio)
		s.Equal([]string{"blob://cover"}, b.Media.Images)
	}

	full, err := s.eng.Book(s.ctx, admin, "b1")
	s.Require().NoError(err)
	s.Equal("chapter one", *full.Content)
	s.Equal("blob://pdf", full.Media.PDF)

	// buyers read content through their order
	s.mint(alice, 5)
	s.addToCart(alice, "b1", 1)
	_, err = s.checkout(alice, "o1")
	s.Require().NoError(err)
	content, err := s.eng.PurchasedContent(s.ctx, alice, "o1", "b1")
	s.Require().NoError(err)
	s.Equal("chapter one", *content)
	media, err := s.eng.PurchasedMedia(s.ctx, alice, "o1", "b1")
	s.Require().NoError(err)
	s.Equal([]string{"blob://a1"}, media.Audio)

	_, err = s.eng.PurchasedContent(s.ctx, bob, "o1", "b1")
	s.requireCode(err, bookstore.CodeUnauthorized)
	_, err = s.eng.PurchasedContent(s.ctx, alice, "o1", "other")
	s.requireCode(err, bookstore.CodeNotFound)
}

func (s *EngineSuite) TestMediaAttachDetach() {
	s.addBook(BookInput{ID: "b1", Price: 5})
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaVideo, "v1"))
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaVideo, "v2"))
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaPDF, "p1"))
	s.Require().NoError(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaPDF, "p2"))

	s.requireCode(s.eng.AttachMedia(s.ctx, admin, "b1", "hologram", "x"), bookstore.CodeInvalidInput)
	s.requireCode(s.eng.AttachMedia(s.ctx, admin, "b1", bookstore.MediaVideo, " "), bookstore.CodeInvalidInput)
	s.requireCode(s.eng.AttachMedia(s.ctx, admin, "missing", bookstore.MediaVideo, "v"), bookstore.CodeBookNotFound)

	s.Require().NoError(s.eng.DetachMedia(s.ctx, admin, "b1", bookstore.MediaVideo, 0))
	s.requireCode(s.eng.DetachMedia(s.ctx, admin, "b1", bookstore.MediaVideo, 3), bookstore.CodeNotFound)
	s.Require().NoError(s.eng.DetachMedia(s.ctx, admin, "b1", bookstore.MediaPDF, 0))
	s.requireCode(s.eng.DetachMedia(s.ctx, admin, "b1", bookstore.MediaPDF, 0), bookstore.CodeNotFound)

	b, err := s.eng.Book(s.ctx, admin, "b1")
	s.Require().NoError(err)
	s.Equal([]string{"v2"}, b.Media.Video)
	s.Empty(b.Media.PDF)
}

func (s *EngineSuite) TestSoldCopyCannotBeResurrected() {
	s.addBook(BookInput{ID: "rare", Title: "Rare", Price: 5, SingleCopy: true})
	s.mint(alice, 5)
	s.addToCart(alice, "rare", 1)
	_, err := s.checkout(alice, "o1")
	s.Require().NoError(err)

	err = s.eng.UpdateBook(s.ctx, admin, BookUpdate{ID: "rare", Title: "Rare", Price: 5, Available: true, SingleCopy: true})
	s.requireCode(err, bookstore.CodeConflict)
	err = s.eng.UpdateBook(s.ctx, admin, BookUpdate{ID: "rare", Title: "Rare", Price: 5, SingleCopy: false})
	s.requireCode(err, bookstore.CodeConflict)

	s.Require().NoError(s.eng.UpdateBook(s.ctx, admin, BookUpdate{ID: "rare", Title: "Rare (signed)", Price: 9, SingleCopy: true}))
	b, err := s.eng.Book(s.ctx, admin, "rare")
	s.Require().NoError(err)
	s.Equal("Rare (signed)", b.Title)
	s.False(b.Available)

	s.mint(bob, 10)
	s.requireCode(s.eng.AddToCart(s.ctx, bob, "rare", 1), bookstore.CodeSoldOut)
}

func (s *EngineSuite) TestReEnableByTitle() {
	s.addBook(BookInput{ID: "sold", Title: "Some Title", Price: 5, SingleCopy: true})
	s.addBook(BookInput{ID: "shelved", Title: "Some Title", Price: 5, SingleCopy: true})
	s.addBook(BookInput{ID: "other", Title: "Another", Price: 5})
	s.addBook(BookInput{ID: "withdrawn", Title: "Some Title", Price: 5})
	s.mint(alice, 5)
	s.addToCart(alice, "sold", 1)
	_, err := s.checkout(alice, "o1")
	s.Require().NoError(err)
	s.Require().NoError(s.eng.UpdateBook(s.ctx, admin, BookUpdate{ID: "shelved", Title: "Some Title", Price: 5, SingleCopy: true}))
	s.Require().NoError(s.eng.UpdateBook(s.ctx, admin, BookUpdate{ID: "withdrawn", Title: "Some Title", Price: 5}))

	_, err = s.eng.ReEnableByTitle(s.ctx, alice, "Some Title")
	s.requireCode(err, bookstore.CodeUnauthorized)
	_, err = s.eng.ReEnableByTitle(s.ctx, admin, "  ")
	s.requireCode(err, bookstore.CodeInvalidInput)

	res, err := s.eng.ReEnableByTitle(s.ctx, admin, "some title")
	s.Require().NoError(err)
	s.Equal([]string{"shelved"}, res.UpdatedBooks)
	s.Equal([]string{"sold"}, res.SkippedBooks)
	s.Equal(1, res.UpdatedCount)

	books, err := s.eng.AvailableBooks(s.ctx, alice)
	s.Require().NoError(err)
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	s.ElementsMatch([]string{"shelved", "other"}, ids)
}

func (s *EngineSuite) TestCartOperations() {
	s.addBook(BookInput{ID: "b1", Price: 5})
	s.requireCode(s.eng.AddToCart(s.ctx, alice, "b1", 0), bookstore.CodeInvalidInput)
	s.requireCode(s.eng.AddToCart(s.ctx, alice, "nope", 1), bookstore.CodeBookNotFound)
	s.requireCode(s.eng.AddToCart(s.ctx, bookstore.Anonymous, "b1", 1), bookstore.CodeUnauthorized)

	s.addToCart(alice, "b1", 2)
	s.addToCart(alice, "b1", 3)
	cart, err := s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]bookstore.CartItem{{BookID: "b1", Quantity: 5}}, cart)

	s.Require().NoError(s.eng.RemoveFromCart(s.ctx, alice, "b1"))
	cart, err = s.eng.Cart(s.ctx, alice)
	s.Require().NoError(err)
	s.Empty(cart)
}
