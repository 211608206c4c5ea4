package memstore

import "github.com/ariefcatur/go-bookstore-engine/internal/bookstore"

// Stored values never alias caller memory.

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneBook(b bookstore.Book) bookstore.Book {
	if b.Content != nil {
		c := *b.Content
		b.Content = &c
	}
	b.Media.Audio = cloneStrings(b.Media.Audio)
	b.Media.Video = cloneStrings(b.Media.Video)
	b.Media.Images = cloneStrings(b.Media.Images)
	return b
}

func cloneItems(items []bookstore.CartItem) []bookstore.CartItem {
	if items == nil {
		return nil
	}
	return append([]bookstore.CartItem(nil), items...)
}

func cloneOrder(o bookstore.Order) bookstore.Order {
	o.Items = cloneItems(o.Items)
	o.DeliveredBookIDs = cloneStrings(o.DeliveredBookIDs)
	return o
}

func cloneMessage(m bookstore.SupportMessage) bookstore.SupportMessage {
	if m.ResponseTo != nil {
		r := *m.ResponseTo
		m.ResponseTo = &r
	}
	return m
}

func mapSlice[T any](in []T, f func(T) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
