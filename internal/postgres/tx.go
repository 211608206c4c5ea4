package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// ---- roles, profiles, settings ----

func (t *pgTx) Role(ctx context.Context, id bookstore.Identity) (bookstore.Role, bool, error) {
	var r string
	err := t.tx.QueryRow(ctx, `SELECT role FROM roles WHERE identity=$1`, string(id)).Scan(&r)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return bookstore.Role(r), true, nil
}

func (t *pgTx) SetRole(ctx context.Context, id bookstore.Identity, role bookstore.Role) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO roles(identity, role) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET role = EXCLUDED.role`, string(id), string(role))
	return err
}

func (t *pgTx) HasAdmin(ctx context.Context) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM roles WHERE role=$1`, string(bookstore.RoleAdmin))
}

func (t *pgTx) Profile(ctx context.Context, id bookstore.Identity) (bookstore.Profile, error) {
	p := bookstore.Profile{Identity: id}
	err := t.tx.QueryRow(ctx, `SELECT name FROM profiles WHERE identity=$1`, string(id)).Scan(&p.Name)
	if err != nil {
		return bookstore.Profile{}, notFound(err, "profile "+string(id))
	}
	return p, nil
}

func (t *pgTx) PutProfile(ctx context.Context, p bookstore.Profile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO profiles(identity, name) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET name = EXCLUDED.name`, string(p.Identity), p.Name)
	return err
}

func (t *pgTx) Settings(ctx context.Context) (bookstore.Settings, error) {
	var s bookstore.Settings
	var owner string
	err := t.tx.QueryRow(ctx, `SELECT next_message_id, designated_owner FROM settings WHERE id=1`).Scan(&s.NextMessageID, &owner)
	if err != nil {
		return bookstore.Settings{}, err
	}
	s.DesignatedOwner = bookstore.Identity(owner)
	return s, nil
}

func (t *pgTx) PutSettings(ctx context.Context, s bookstore.Settings) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO settings(id, next_message_id, designated_owner) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET next_message_id = EXCLUDED.next_message_id,
		                               designated_owner = EXCLUDED.designated_owner`,
		s.NextMessageID, string(s.DesignatedOwner))
	return err
}

// ---- ledger ----

func (t *pgTx) Balance(ctx context.Context, id bookstore.Identity) (int64, error) {
	var amount int64
	err := t.tx.QueryRow(ctx, `SELECT amount FROM balances WHERE identity=$1`, string(id)).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (t *pgTx) Credit(ctx context.Context, id bookstore.Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit %d to %s: %w", amount, id, bookstore.ErrInvalidAmount)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances(identity, amount) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`, string(id), amount)
	if isNumericOverflow(err) {
		return fmt.Errorf("credit %d to %s overflows balance: %w", amount, id, bookstore.ErrInvalidAmount)
	}
	return err
}

func (t *pgTx) Debit(ctx context.Context, id bookstore.Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit %d from %s: %w", amount, id, bookstore.ErrInvalidAmount)
	}
	ct, err := t.tx.Exec(ctx, `UPDATE balances SET amount = amount - $2 WHERE identity=$1 AND amount >= $2`, string(id), amount)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("debit %d from %s: %w", amount, id, bookstore.ErrInsufficientFunds)
	}
	return nil
}

// ---- catalog ----

const bookColumns = `id, title, author, price, available, single_copy, kyc_restricted, content, media`

func scanBook(row pgx.Row) (bookstore.Book, error) {
	var b bookstore.Book
	var media []byte
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.Available, &b.SingleCopy, &b.KycRestricted, &b.Content, &media); err != nil {
		return bookstore.Book{}, err
	}
	if err := json.Unmarshal(media, &b.Media); err != nil {
		return bookstore.Book{}, fmt.Errorf("decode media of %s: %w", b.ID, err)
	}
	return b, nil
}

func bookArgs(b bookstore.Book) ([]any, error) {
	media, err := json.Marshal(b.Media)
	if err != nil {
		return nil, err
	}
	return []any{b.ID, b.Title, b.Author, b.Price, b.Available, b.SingleCopy, b.KycRestricted, b.Content, media}, nil
}

func (t *pgTx) Book(ctx context.Context, id string) (bookstore.Book, error) {
	b, err := scanBook(t.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, id))
	if err != nil {
		return bookstore.Book{}, notFound(err, "book "+id)
	}
	return b, nil
}

func (t *pgTx) Books(ctx context.Context) ([]bookstore.Book, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookstore.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertBook(ctx context.Context, b bookstore.Book) error {
	args, err := bookArgs(b)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO books(`+bookColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("book %s: %w", b.ID, bookstore.ErrConflict)
	}
	return err
}

func (t *pgTx) UpdateBook(ctx context.Context, b bookstore.Book) error {
	args, err := bookArgs(b)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE books SET title=$2, author=$3, price=$4, available=$5, single_copy=$6,
		                 kyc_restricted=$7, content=$8, media=$9
		WHERE id=$1`, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("book %s: %w", b.ID, bookstore.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteBook(ctx context.Context, id string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("book %s: %w", id, bookstore.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Sale(ctx context.Context, bookID string) (bookstore.Sale, error) {
	s := bookstore.Sale{BookID: bookID}
	var buyer string
	err := t.tx.QueryRow(ctx, `SELECT order_id, buyer, sold_at FROM sales WHERE book_id=$1`, bookID).Scan(&s.OrderID, &buyer, &s.SoldAt)
	if err != nil {
		return bookstore.Sale{}, notFound(err, "sale of "+bookID)
	}
	s.Buyer = bookstore.Identity(buyer)
	return s, nil
}

// MarkSold flips availability only while the row still says available; a
// concurrent seller blocks on the row lock and then matches nothing.
func (t *pgTx) MarkSold(ctx context.Context, s bookstore.Sale) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE books SET available = false
		WHERE id=$1 AND available AND single_copy
		  AND NOT EXISTS (SELECT 1 FROM sales WHERE book_id=$1)`, s.BookID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		found, err := t.exists(ctx, `SELECT 1 FROM books WHERE id=$1`, s.BookID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("book %s: %w", s.BookID, bookstore.ErrNotFound)
		}
		return fmt.Errorf("book %s: %w", s.BookID, bookstore.ErrSoldOut)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO sales(book_id, order_id, buyer, sold_at) VALUES ($1,$2,$3,$4)`,
		s.BookID, s.OrderID, string(s.Buyer), s.SoldAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("book %s: %w", s.BookID, bookstore.ErrSoldOut)
	}
	return err
}

func (t *pgTx) Unsell(ctx context.Context, bookID, orderID string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM sales WHERE book_id=$1 AND order_id=$2`, bookID, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("sale of %s by %s: %w", bookID, orderID, bookstore.ErrNotFound)
	}
	_, err = t.tx.Exec(ctx, `UPDATE books SET available = true WHERE id=$1`, bookID)
	return err
}

// ---- carts ----

func (t *pgTx) Cart(ctx context.Context, id bookstore.Identity) ([]bookstore.CartItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT book_id, quantity FROM cart_items WHERE identity=$1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookstore.CartItem
	for rows.Next() {
		var it bookstore.CartItem
		if err := rows.Scan(&it.BookID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *pgTx) PutCartItem(ctx context.Context, id bookstore.Identity, item bookstore.CartItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cart_items(identity, book_id, quantity) VALUES ($1,$2,$3)
		ON CONFLICT (identity, book_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		string(id), item.BookID, item.Quantity)
	return err
}

func (t *pgTx) RemoveCartItem(ctx context.Context, id bookstore.Identity, bookID string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE identity=$1 AND book_id=$2`, string(id), bookID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("cart item %s: %w", bookID, bookstore.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ClearCart(ctx context.Context, id bookstore.Identity) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE identity=$1`, string(id))
	return err
}

// ---- kyc ----

const kycColumns = `identifier, state, valid_until, claimed_by, bound_to, bound_order_id, updated_at`

func scanKyc(row pgx.Row) (bookstore.KycRecord, error) {
	var r bookstore.KycRecord
	var state, claimedBy, boundTo string
	if err := row.Scan(&r.Identifier, &state, &r.ValidUntil, &claimedBy, &boundTo, &r.BoundOrderID, &r.UpdatedAt); err != nil {
		return bookstore.KycRecord{}, err
	}
	r.State = bookstore.KycState(state)
	r.ClaimedBy = bookstore.Identity(claimedBy)
	r.BoundTo = bookstore.Identity(boundTo)
	return r, nil
}

func (t *pgTx) Kyc(ctx context.Context, identifier string) (bookstore.KycRecord, error) {
	r, err := scanKyc(t.tx.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_records WHERE identifier=$1`, identifier))
	if err != nil {
		return bookstore.KycRecord{}, notFound(err, "kyc "+identifier)
	}
	return r, nil
}

func (t *pgTx) KycBoundTo(ctx context.Context, id bookstore.Identity) (bookstore.KycRecord, error) {
	r, err := scanKyc(t.tx.QueryRow(ctx,
		`SELECT `+kycColumns+` FROM kyc_records WHERE bound_to=$1 AND bound_order_id <> ''`, string(id)))
	if err != nil {
		return bookstore.KycRecord{}, notFound(err, "kyc bound to "+string(id))
	}
	return r, nil
}

func (t *pgTx) PutKyc(ctx context.Context, r bookstore.KycRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO kyc_records(`+kycColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (identifier) DO UPDATE SET state=EXCLUDED.state, valid_until=EXCLUDED.valid_until,
		    claimed_by=EXCLUDED.claimed_by, bound_to=EXCLUDED.bound_to,
		    bound_order_id=EXCLUDED.bound_order_id, updated_at=EXCLUDED.updated_at`,
		r.Identifier, string(r.State), r.ValidUntil, string(r.ClaimedBy), string(r.BoundTo), r.BoundOrderID, r.UpdatedAt)
	return err
}

func (t *pgTx) BindKyc(ctx context.Context, identifier string, user bookstore.Identity, orderID string, now time.Time) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE kyc_records SET bound_to=$2, bound_order_id=$3, updated_at=$4
		WHERE identifier=$1 AND bound_order_id='' AND state=$5 AND valid_until > $4`,
		identifier, string(user), orderID, now, string(bookstore.KycValidatedProof))
	if isUniqueViolation(err) {
		return fmt.Errorf("kyc bound to %s: %w", user, bookstore.ErrAlreadyBound)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	r, err := t.Kyc(ctx, identifier)
	switch {
	case errors.Is(err, bookstore.ErrNotFound):
		return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrProofUnusable)
	case err != nil:
		return err
	case r.Bound() && r.BoundOrderID == orderID:
		return nil
	case r.Bound():
		return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrAlreadyBound)
	}
	return fmt.Errorf("kyc %s: %w", identifier, bookstore.ErrProofUnusable)
}

// ---- orders ----

const orderColumns = `order_id, user_id, items, total_amount, created_at, delivered_book_ids`

func scanOrder(row pgx.Row) (bookstore.Order, error) {
	var o bookstore.Order
	var user string
	var items, delivered []byte
	if err := row.Scan(&o.OrderID, &user, &items, &o.TotalAmount, &o.Timestamp, &delivered); err != nil {
		return bookstore.Order{}, err
	}
	o.User = bookstore.Identity(user)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return bookstore.Order{}, fmt.Errorf("decode items of %s: %w", o.OrderID, err)
	}
	if err := json.Unmarshal(delivered, &o.DeliveredBookIDs); err != nil {
		return bookstore.Order{}, fmt.Errorf("decode deliveries of %s: %w", o.OrderID, err)
	}
	return o, nil
}

func (t *pgTx) Order(ctx context.Context, orderID string) (bookstore.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID))
	if err != nil {
		return bookstore.Order{}, notFound(err, "order "+orderID)
	}
	return o, nil
}

func (t *pgTx) queryOrders(ctx context.Context, sql string, args ...any) ([]bookstore.Order, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookstore.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) Orders(ctx context.Context) ([]bookstore.Order, error) {
	return t.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY seq`)
}

func (t *pgTx) OrdersBy(ctx context.Context, user bookstore.Identity) ([]bookstore.Order, error) {
	return t.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY seq`, string(user))
}

func orderArgs(o bookstore.Order) ([]any, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	delivered, err := json.Marshal(o.DeliveredBookIDs)
	if err != nil {
		return nil, err
	}
	return []any{o.OrderID, string(o.User), items, o.TotalAmount, o.Timestamp, delivered}, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o bookstore.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO orders(`+orderColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s: %w", o.OrderID, bookstore.ErrConflict)
	}
	return err
}

// ---- support ----

const messageColumns = `id, content, author, created_at, response_to, is_admin_response`

func (t *pgTx) InsertMessage(ctx context.Context, m bookstore.SupportMessage) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO support_messages(`+messageColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.Content, string(m.Author), m.Timestamp, m.ResponseTo, m.IsAdminResponse)
	if isUniqueViolation(err) {
		return fmt.Errorf("message %d: %w", m.ID, bookstore.ErrConflict)
	}
	return err
}

func (t *pgTx) Messages(ctx context.Context) ([]bookstore.SupportMessage, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+messageColumns+` FROM support_messages ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookstore.SupportMessage
	for rows.Next() {
		var m bookstore.SupportMessage
		var author string
		if err := rows.Scan(&m.ID, &m.Content, &author, &m.Timestamp, &m.ResponseTo, &m.IsAdminResponse); err != nil {
			return nil, err
		}
		m.Author = bookstore.Identity(author)
		out = append(out, m)
	}
	return out, rows.Err()
}
