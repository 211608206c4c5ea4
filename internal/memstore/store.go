// Package memstore keeps the whole bookstore in process memory. A single
// writer lock serializes transactions; each transaction journals undo steps
// so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

var errReadOnly = errors.New("memstore: write in read-only transaction")

type state struct {
	books    *table[bookstore.Book]
	sales    *table[bookstore.Sale]
	balances *table[int64]
	carts    *table[[]bookstore.CartItem]
	orders   *table[bookstore.Order]
	kyc      *table[bookstore.KycRecord]
	roles    *table[bookstore.Role]
	profiles *table[bookstore.Profile]
	messages *table[bookstore.SupportMessage]
	settings bookstore.Settings
}

func newState() state {
	return state{
		books:    newTable[bookstore.Book](),
		sales:    newTable[bookstore.Sale](),
		balances: newTable[int64](),
		carts:    newTable[[]bookstore.CartItem](),
		orders:   newTable[bookstore.Order](),
		kyc:      newTable[bookstore.KycRecord](),
		roles:    newTable[bookstore.Role](),
		profiles: newTable[bookstore.Profile](),
		messages: newTable[bookstore.SupportMessage](),
		settings: bookstore.Settings{NextMessageID: 1},
	}
}

type Store struct {
	mu sync.RWMutex
	st state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ bookstore.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(context.Context, bookstore.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: &s.st}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
		if err != nil {
			t.rollback()
		}
	}()
	return fn(ctx, t)
}

func (s *Store) View(ctx context.Context, fn func(context.Context, bookstore.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: &s.st, readOnly: true})
}

type tx struct {
	st       *state
	readOnly bool
	undo     []func()
}

func (t *tx) record(u func()) {
	if u != nil {
		t.undo = append(t.undo, u)
	}
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// ---- roles, profiles, settings ----

func (t *tx) Role(_ context.Context, id bookstore.Identity) (bookstore.Role, bool, error) {
	r, ok := t.st.roles.get(string(id))
	return r, ok, nil
}

func (t *tx) SetRole(_ context.Context, id bookstore.Identity, role bookstore.Role) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.record(t.st.roles.put(string(id), role))
	return nil
}

func (t *tx) HasAdmin(_ context.Context) (bool, error) {
	for _, r := range t.st.roles.list() {
		if r == bookstore.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) Profile(_ context.Context, id bookstore.Identity) (bookstore.Profile, error) {
	p, ok := t.st.profiles.get(string(id))
	if !ok {
		return bookstore.Profile{}, fmt.Errorf("profile %s: %w", id, bookstore.ErrNotFound)
	}
	return p, nil
}

func (t *tx) PutProfile(_ context.Context, p bookstore.Profile) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.record(t.st.profiles.put(string(p.Identity), p))
	return nil
}

func (t *tx) Settings(_ context.Context) (bookstore.Settings, error) {
	return t.st.settings, nil
}

func (t *tx) PutSettings(_ context.Context, s bookstore.Settings) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev := t.st.settings
	t.st.settings = s
	t.record(func() { t.st.settings = prev })
	return nil
}

// ---- ledger ----

func (t *tx) Balance(_ context.Context, id bookstore.Identity) (int64, error) {
	b, _ := t.st.balances.get(string(id))
	return b, nil
}

func (t *tx) Credit(_ context.Context, id bookstore.Identity, amount int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("credit %d to %s: %w", amount, id, bookstore.ErrInvalidAmount)
	}
	b, _ := t.st.balances.get(string(id))
	if b > math.MaxInt64-amount {
		return fmt.Errorf("credit %d to %s overflows balance %d: %w", amount, id, b, bookstore.ErrInvalidAmount)
	}
	t.record(t.st.balances.put(string(id), b+amount))
	return nil
}

func (t *tx) Debit(_ context.Context, id bookstore.Identity, amount int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("debit %d from %s: %w", amount, id, bookstore.ErrInvalidAmount)
	}
	b, _ := t.st.balances.get(string(id))
	if b < amount {
		return fmt.Errorf("balance %d below %d: %w", b, amount, bookstore.ErrInsufficientFunds)
	}
	t.record(t.st.balances.put(string(id), b-amount))
	return nil
}

// ---- catalog ----

func (t *tx) Book(_ context.Context, id string) (bookstore.Book, error) {
	b, ok := t.st.books.get(id)
	if !ok {
		return bookstore.Book{}, fmt.Errorf("book %s: %w", id, bookstore.ErrNotFound)
	}
	return cloneBook(b), nil
}

func (t *tx) Books(_ context.Context) ([]bookstore.Book, error) {
	return mapSlice(t.st.books.list(), cloneBook), nil
}

func (t *tx) InsertBook(_ context.Context, b bookstore.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.books.get(b.ID); ok {
		return fmt.Errorf("book %s: %w", b.ID, bookstore.ErrConflict)
	}
	t.record(t.st.books.put(b.ID, cloneBook(b)))
	return nil
}

func (t *tx) UpdateBook(_ context.Context, b bookstore.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.books.get(b.ID); !ok {
		return fmt.Errorf("book %s: %w", b.ID, bookstore.ErrNotFound)
	}
	t.record(t.st.books.put(b.ID, cloneBook(b)))
	return nil
}

func (t *tx) DeleteBook(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	u := t.st.books.del(id)
	if u == nil {
		return fmt.Errorf("book %s: %w", id, bookstore.ErrNotFound)
	}
	t.record(u)
	return nil
}

func (t *tx) Sale(_ context.Context, bookID string) (bookstore.Sale, error) {
	s, ok := t.st.sales.get(bookID)
	if !ok {
		return bookstore.Sale{}, fmt.Errorf("sale of %s: %w", bookID, bookstore.ErrNotFound)
	}
	return s, nil
}

func (t *tx) MarkSold(_ context.Context, s bookstore.Sale) error {
	if err := t.writable(); err != nil {
		return err
	}
	b, ok := t.st.books.get(s.BookID)
	if !ok {
		return fmt.Errorf("book %s: %w", s.BookID, bookstore.ErrNotFound)
	}
	if _, sold := t.st.sales.get(s.BookID); sold || !b.Available || !b.SingleCopy {
		return fmt.Errorf("book %s: %w", s.BookID, bookstore.ErrSoldOut)
	}
	b.Available = false
	t.record(t.st.books.put(b.ID, b))
	t.record(t.st.sales.put(s.BookID, s))
	return nil
}

func (t *tx) Unsell(_ context.Context, bookID, orderID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	s, ok := t.st.sales.get(bookID)
	if !ok || s.OrderID != orderID {
		return fmt.Errorf("sale of %s by %s: %w", bookID, orderID, bookstore.ErrNotFound)
	}
	t.record(t.st.sales.del(bookID))
	if b, ok := t.st.books.get(bookID); ok {
		b.Available = true
		t.record(t.st.books.put(bookID, b))
	}
	return nil
}

// ---- carts ----

func (t *tx) Cart(_ context.Context, id bookstore.Identity) ([]bookstore.CartItem, error) {
	items, _ := t.st.carts.get(string(id))
	return cloneItems(items), nil
}

func (t *tx) PutCartItem(_ context.Context, id bookstore.Identity, item bookstore.CartItem) error {
	if err := t.writable(); err != nil {
		return err
	}
	items, _ := t.st.carts.get(string(id))
	items = cloneItems(items)
	replaced := false
	for i := range items {
		if items[i].BookID == item.BookID {
			items[i] = item
			replaced = true
		}
	}
	if !replaced {
		items = append(items, item)
	}
	t.record(t.st.carts.put(string(id), items))
	return nil
}

func (t *tx) RemoveCartItem(_ context.Context, id bookstore.Identity, bookID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	items, _ := t.st.carts.get(string(id))
	out := make([]bookstore.CartItem, 0, len(items))
	for _, it := range items {
		if it.BookID != bookID {
			out = append(out, it)
		}
	}
	if len(out) == len(items) {
		return fmt.Errorf("cart item %s: %w", bookID, bookstore.ErrNotFound)
	}
	t.record(t.st.carts.put(string(id), out))
	return nil
}

func (t *tx) ClearCart(_ context.Context, id bookstore.Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.record(t.st.carts.del(string(id)))
	return nil
}

// ---- kyc ----

func (t *tx) Kyc(_ context.Context, identifier string) (bookstore.KycRecord, error) {
	r, ok := t.st.kyc.get(identifier)
	if !ok {
		return bookstore.KycRecord{}, fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrNotFound)
	}
	return r, nil
}

func (t *tx) KycBoundTo(_ context.Context, id bookstore.Identity) (bookstore.KycRecord, error) {
	for _, r := range t.st.kyc.list() {
		if r.Bound() && r.BoundTo == id {
			return r, nil
		}
	}
	return bookstore.KycRecord{}, fmt.Errorf("kyc bound to %s: %w", id, bookstore.ErrNotFound)
}

func (t *tx) PutKyc(_ context.Context, r bookstore.KycRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.record(t.st.kyc.put(r.Identifier, r))
	return nil
}

func (t *tx) BindKyc(_ context.Context, identifier string, user bookstore.Identity, orderID string, now time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	r, ok := t.st.kyc.get(identifier)
	if !ok {
		return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrProofUnusable)
	}
	switch {
	case r.Bound() && r.BoundOrderID == orderID:
		return nil
	case r.Bound():
		return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrAlreadyBound)
	case r.Blacklisted(), !r.ProofUsable(now):
		return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrProofUnusable)
	}
	r.BoundTo = user
	r.BoundOrderID = orderID
	r.UpdatedAt = now
	t.record(t.st.kyc.put(identifier, r))
	return nil
}

// ---- orders ----

func (t *tx) Order(_ context.Context, orderID string) (bookstore.Order, error) {
	o, ok := t.st.orders.get(orderID)
	if !ok {
		return bookstore.Order{}, fmt.Errorf("order %s: %w", orderID, bookstore.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (t *tx) Orders(_ context.Context) ([]bookstore.Order, error) {
	return mapSlice(t.st.orders.list(), cloneOrder), nil
}

func (t *tx) OrdersBy(_ context.Context, user bookstore.Identity) ([]bookstore.Order, error) {
	var out []bookstore.Order
	for _, o := range t.st.orders.list() {
		if o.User == user {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (t *tx) InsertOrder(_ context.Context, o bookstore.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.orders.get(o.OrderID); ok {
		return fmt.Errorf("order %s: %w", o.OrderID, bookstore.ErrConflict)
	}
	t.record(t.st.orders.put(o.OrderID, cloneOrder(o)))
	return nil
}

// ---- support ----

func (t *tx) InsertMessage(_ context.Context, m bookstore.SupportMessage) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := strconv.FormatInt(m.ID, 10)
	if _, ok := t.st.messages.get(k); ok {
		return fmt.Errorf("message %d: %w", m.ID, bookstore.ErrConflict)
	}
	t.record(t.st.messages.put(k, cloneMessage(m)))
	return nil
}

func (t *tx) Messages(_ context.Context) ([]bookstore.SupportMessage, error) {
	return mapSlice(t.st.messages.list(), cloneMessage), nil
}

// ---- snapshot ----

func (t *tx) Snapshot(_ context.Context) (bookstore.Snapshot, error) {
	st := t.st
	snap := bookstore.Snapshot{
		Books:    mapSlice(st.books.list(), cloneBook),
		Sales:    st.sales.list(),
		Orders:   mapSlice(st.orders.list(), cloneOrder),
		Kyc:      st.kyc.list(),
		Profiles: st.profiles.list(),
		Messages: mapSlice(st.messages.list(), cloneMessage),
		Settings: st.settings,
	}
	for _, k := range st.balances.order {
		snap.Balances = append(snap.Balances, bookstore.Balance{Identity: bookstore.Identity(k), Amount: st.balances.items[k]})
	}
	for _, k := range st.carts.order {
		snap.Carts = append(snap.Carts, bookstore.Cart{Identity: bookstore.Identity(k), Items: cloneItems(st.carts.items[k])})
	}
	for _, k := range st.roles.order {
		snap.Roles = append(snap.Roles, bookstore.RoleAssignment{Identity: bookstore.Identity(k), Role: st.roles.items[k]})
	}
	return snap, nil
}

func (t *tx) Restore(_ context.Context, snap bookstore.Snapshot) error {
	if err := t.writable(); err != nil {
		return err
	}
	next := newState()
	next.books.load(mapSlice(snap.Books, cloneBook), func(b bookstore.Book) string { return b.ID })
	next.sales.load(snap.Sales, func(s bookstore.Sale) string { return s.BookID })
	next.orders.load(mapSlice(snap.Orders, cloneOrder), func(o bookstore.Order) string { return o.OrderID })
	next.kyc.load(snap.Kyc, func(r bookstore.KycRecord) string { return r.Identifier })
	next.profiles.load(snap.Profiles, func(p bookstore.Profile) string { return string(p.Identity) })
	next.messages.load(mapSlice(snap.Messages, cloneMessage), func(m bookstore.SupportMessage) string { return strconv.FormatInt(m.ID, 10) })
	for _, b := range snap.Balances {
		next.balances.put(string(b.Identity), b.Amount)
	}
	for _, c := range snap.Carts {
		next.carts.put(string(c.Identity), cloneItems(c.Items))
	}
	for _, r := range snap.Roles {
		next.roles.put(string(r.Identity), r.Role)
	}
	next.settings = snap.Settings

	prev := *t.st
	*t.st = next
	t.record(func() { *t.st = prev })
	return nil
}
