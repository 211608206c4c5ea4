package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

type BookInput struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Price         int64   `json:"price"`
	Content       *string `json:"content,omitempty"`
	SingleCopy    bool    `json:"single_copy"`
	KycRestricted bool    `json:"kyc_restricted"`
}

type BookUpdate struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Price         int64  `json:"price"`
	Available     bool   `json:"available"`
	SingleCopy    bool   `json:"single_copy"`
	KycRestricted bool   `json:"kyc_restricted"`
}

func validateBookFields(id string, price int64) error {
	if strings.TrimSpace(id) == "" {
		return bookstore.New(bookstore.CodeInvalidInput, "book id is required")
	}
	if price < 0 {
		return bookstore.Newf(bookstore.CodeInvalidInput, "price must not be negative, got %d", price)
	}
	return nil
}

func bookErr(err error, id string) error {
	if errors.Is(err, bookstore.ErrNotFound) {
		return bookstore.Wrap(err, bookstore.CodeBookNotFound, "book "+id+" not found")
	}
	return translate(err, "book "+id)
}

// editBook loads a book, applies fn and stores it, admin only.
func (e *Engine) editBook(ctx context.Context, caller bookstore.Identity, id string, fn func(b *bookstore.Book) error) error {
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		b, err := tx.Book(ctx, id)
		if err != nil {
			return bookErr(err, id)
		}
		if err := fn(&b); err != nil {
			return err
		}
		return bookErr(tx.UpdateBook(ctx, b), id)
	})
}

func (e *Engine) AddBook(ctx context.Context, caller bookstore.Identity, in BookInput) error {
	if err := validateBookFields(in.ID, in.Price); err != nil {
		return err
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		err := tx.InsertBook(ctx, bookstore.Book{
			ID:            in.ID,
			Title:         in.Title,
			Author:        in.Author,
			Price:         in.Price,
			Available:     true,
			SingleCopy:    in.SingleCopy,
			KycRestricted: in.KycRestricted,
			Content:       in.Content,
		})
		if errors.Is(err, bookstore.ErrConflict) {
			return bookstore.Wrap(err, bookstore.CodeConflict, "book "+in.ID+" already exists")
		}
		return translate(err, "insert book")
	})
	if err == nil {
		e.logger.InfoContext(ctx, "book added", "by", caller, "book_id", in.ID, "single_copy", in.SingleCopy, "kyc_restricted", in.KycRestricted)
	}
	return err
}

// UpdateBook edits catalog fields. A sold single-copy book stays sold: it can
// neither be made available again nor lose its scarcity flag.
func (e *Engine) UpdateBook(ctx context.Context, caller bookstore.Identity, in BookUpdate) error {
	if err := validateBookFields(in.ID, in.Price); err != nil {
		return err
	}
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		b, err := tx.Book(ctx, in.ID)
		if err != nil {
			return bookErr(err, in.ID)
		}
		sold, err := isSold(ctx, tx, b)
		if err != nil {
			return err
		}
		if sold && (in.Available || !in.SingleCopy) {
			return bookstore.Newf(bookstore.CodeConflict, "book %s is a sold single copy and cannot be offered again", in.ID)
		}
		b.Title, b.Author, b.Price = in.Title, in.Author, in.Price
		b.Available, b.SingleCopy, b.KycRestricted = in.Available, in.SingleCopy, in.KycRestricted
		return bookErr(tx.UpdateBook(ctx, b), in.ID)
	})
}

func (e *Engine) DeleteBook(ctx context.Context, caller bookstore.Identity, id string) error {
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return bookErr(tx.DeleteBook(ctx, id), id)
	})
}

func (e *Engine) UpdateContent(ctx context.Context, caller bookstore.Identity, id, content string) error {
	return e.editBook(ctx, caller, id, func(b *bookstore.Book) error {
		b.Content = &content
		return nil
	})
}

// AttachMedia adds a blob reference. A PDF replaces the previous one.
func (e *Engine) AttachMedia(ctx context.Context, caller bookstore.Identity, id string, kind bookstore.MediaKind, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return bookstore.New(bookstore.CodeInvalidInput, "blob reference is required")
	}
	return e.editBook(ctx, caller, id, func(b *bookstore.Book) error {
		switch kind {
		case bookstore.MediaPDF:
			b.Media.PDF = ref
		case bookstore.MediaAudio:
			b.Media.Audio = append(b.Media.Audio, ref)
		case bookstore.MediaVideo:
			b.Media.Video = append(b.Media.Video, ref)
		case bookstore.MediaImage:
			b.Media.Images = append(b.Media.Images, ref)
		default:
			return bookstore.Newf(bookstore.CodeInvalidInput, "unknown media kind %q", kind)
		}
		return nil
	})
}

// DetachMedia removes the reference at index; index is ignored for PDFs.
func (e *Engine) DetachMedia(ctx context.Context, caller bookstore.Identity, id string, kind bookstore.MediaKind, index int) error {
	return e.editBook(ctx, caller, id, func(b *bookstore.Book) error {
		var list *[]string
		switch kind {
		case bookstore.MediaPDF:
			if b.Media.PDF == "" {
				return bookstore.New(bookstore.CodeNotFound, "book has no pdf")
			}
			b.Media.PDF = ""
			return nil
		case bookstore.MediaAudio:
			list = &b.Media.Audio
		case bookstore.MediaVideo:
			list = &b.Media.Video
		case bookstore.MediaImage:
			list = &b.Media.Images
		default:
			return bookstore.Newf(bookstore.CodeInvalidInput, "unknown media kind %q", kind)
		}
		if index < 0 || index >= len(*list) {
			return bookstore.Newf(bookstore.CodeNotFound, "no %s media at index %d", kind, index)
		}
		*list = append((*list)[:index], (*list)[index+1:]...)
		return nil
	})
}

// publicView hides purchasable content from non-admin callers; cover
// images stay visible.
func publicView(b bookstore.Book) bookstore.Book {
	b.Content = nil
	b.Media.PDF = ""
	b.Media.Audio = nil
	b.Media.Video = nil
	return b
}

func (e *Engine) Book(ctx context.Context, caller bookstore.Identity, id string) (bookstore.Book, error) {
	var out bookstore.Book
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		b, err := tx.Book(ctx, id)
		if err != nil {
			return bookErr(err, id)
		}
		r, err := roleOf(ctx, tx, caller)
		if err != nil {
			return err
		}
		if r != bookstore.RoleAdmin {
			b = publicView(b)
		}
		out = b
		return nil
	})
	return out, err
}

func (e *Engine) Books(ctx context.Context, caller bookstore.Identity) ([]bookstore.Book, error) {
	return e.listBooks(ctx, caller, false)
}

func (e *Engine) AvailableBooks(ctx context.Context, caller bookstore.Identity) ([]bookstore.Book, error) {
	return e.listBooks(ctx, caller, true)
}

func (e *Engine) listBooks(ctx context.Context, caller bookstore.Identity, availableOnly bool) ([]bookstore.Book, error) {
	var out []bookstore.Book
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		books, err := tx.Books(ctx)
		if err != nil {
			return translate(err, "list books")
		}
		r, err := roleOf(ctx, tx, caller)
		if err != nil {
			return err
		}
		out = make([]bookstore.Book, 0, len(books))
		for _, b := range books {
			if availableOnly && !b.Available {
				continue
			}
			if r != bookstore.RoleAdmin {
				b = publicView(b)
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

// ReEnableByTitle makes every single-copy book titled title available again,
// matching case-insensitively. Sold copies are skipped, never resurrected.
// Other books with the title are left alone.
func (e *Engine) ReEnableByTitle(ctx context.Context, caller bookstore.Identity, title string) (bookstore.ReEnableResult, error) {
	want := strings.TrimSpace(title)
	if want == "" {
		return bookstore.ReEnableResult{}, bookstore.New(bookstore.CodeInvalidInput, "title is required")
	}
	res := bookstore.ReEnableResult{UpdatedBooks: []string{}, SkippedBooks: []string{}}
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		books, err := tx.Books(ctx)
		if err != nil {
			return translate(err, "list books")
		}
		for _, b := range books {
			if !b.SingleCopy || !strings.EqualFold(strings.TrimSpace(b.Title), want) {
				continue
			}
			sold, err := isSold(ctx, tx, b)
			if err != nil {
				return err
			}
			if sold {
				res.SkippedBooks = append(res.SkippedBooks, b.ID)
				continue
			}
			if !b.Available {
				b.Available = true
				if err := tx.UpdateBook(ctx, b); err != nil {
					return bookErr(err, b.ID)
				}
			}
			res.UpdatedBooks = append(res.UpdatedBooks, b.ID)
		}
		res.UpdatedCount = len(res.UpdatedBooks)
		return nil
	})
	if err != nil {
		return bookstore.ReEnableResult{}, err
	}
	e.logger.InfoContext(ctx, "books re-enabled", "by", caller, "title", want,
		"updated", res.UpdatedCount, "skipped", len(res.SkippedBooks))
	return res, nil
}

func isSold(ctx context.Context, tx bookstore.Tx, b bookstore.Book) (bool, error) {
	if !b.SingleCopy {
		return false, nil
	}
	_, err := tx.Sale(ctx, b.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bookstore.ErrNotFound):
		return false, nil
	}
	return false, translate(err, "load sale")
}
