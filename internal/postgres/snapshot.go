package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func (t *pgTx) Snapshot(ctx context.Context) (bookstore.Snapshot, error) {
	var snap bookstore.Snapshot
	var err error

	if snap.Books, err = t.Books(ctx); err != nil {
		return snap, err
	}
	if snap.Orders, err = t.Orders(ctx); err != nil {
		return snap, err
	}
	if snap.Messages, err = t.Messages(ctx); err != nil {
		return snap, err
	}
	if snap.Settings, err = t.Settings(ctx); err != nil {
		return snap, err
	}

	snap.Sales, err = collect(ctx, t.tx, `SELECT book_id, order_id, buyer, sold_at FROM sales ORDER BY seq`,
		func(row pgx.Rows) (bookstore.Sale, error) {
			var s bookstore.Sale
			var buyer string
			err := row.Scan(&s.BookID, &s.OrderID, &buyer, &s.SoldAt)
			s.Buyer = bookstore.Identity(buyer)
			return s, err
		})
	if err != nil {
		return snap, err
	}
	snap.Balances, err = collect(ctx, t.tx, `SELECT identity, amount FROM balances ORDER BY seq`,
		func(row pgx.Rows) (bookstore.Balance, error) {
			var b bookstore.Balance
			var id string
			err := row.Scan(&id, &b.Amount)
			b.Identity = bookstore.Identity(id)
			return b, err
		})
	if err != nil {
		return snap, err
	}
	snap.Kyc, err = collect(ctx, t.tx, `SELECT `+kycColumns+` FROM kyc_records ORDER BY seq`,
		func(row pgx.Rows) (bookstore.KycRecord, error) { return scanKyc(row) })
	if err != nil {
		return snap, err
	}
	snap.Roles, err = collect(ctx, t.tx, `SELECT identity, role FROM roles ORDER BY seq`,
		func(row pgx.Rows) (bookstore.RoleAssignment, error) {
			var id, role string
			err := row.Scan(&id, &role)
			return bookstore.RoleAssignment{Identity: bookstore.Identity(id), Role: bookstore.Role(role)}, err
		})
	if err != nil {
		return snap, err
	}
	snap.Profiles, err = collect(ctx, t.tx, `SELECT identity, name FROM profiles ORDER BY seq`,
		func(row pgx.Rows) (bookstore.Profile, error) {
			var id, name string
			err := row.Scan(&id, &name)
			return bookstore.Profile{Identity: bookstore.Identity(id), Name: name}, err
		})
	if err != nil {
		return snap, err
	}

	// Carts are ordered by the first line each identity added.
	type line struct {
		id   bookstore.Identity
		item bookstore.CartItem
	}
	lines, err := collect(ctx, t.tx, `SELECT identity, book_id, quantity FROM cart_items ORDER BY seq`,
		func(row pgx.Rows) (line, error) {
			var l line
			var id string
			err := row.Scan(&id, &l.item.BookID, &l.item.Quantity)
			l.id = bookstore.Identity(id)
			return l, err
		})
	if err != nil {
		return snap, err
	}
	pos := map[bookstore.Identity]int{}
	for _, l := range lines {
		i, ok := pos[l.id]
		if !ok {
			i = len(snap.Carts)
			pos[l.id] = i
			snap.Carts = append(snap.Carts, bookstore.Cart{Identity: l.id})
		}
		snap.Carts[i].Items = append(snap.Carts[i].Items, l.item)
	}
	return snap, nil
}

func collect[T any](ctx context.Context, tx pgx.Tx, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Restore truncates every data table and reloads it from snap in one batch.
func (t *pgTx) Restore(ctx context.Context, snap bookstore.Snapshot) error {
	if _, err := t.tx.Exec(ctx, `TRUNCATE `+strings.Join(dataTables, ", ")+` RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	b := &pgx.Batch{}
	for _, bk := range snap.Books {
		args, err := bookArgs(bk)
		if err != nil {
			return err
		}
		b.Queue(`INSERT INTO books(`+bookColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, args...)
	}
	for _, s := range snap.Sales {
		b.Queue(`INSERT INTO sales(book_id, order_id, buyer, sold_at) VALUES ($1,$2,$3,$4)`,
			s.BookID, s.OrderID, string(s.Buyer), s.SoldAt)
	}
	for _, bal := range snap.Balances {
		b.Queue(`INSERT INTO balances(identity, amount) VALUES ($1,$2)`, string(bal.Identity), bal.Amount)
	}
	for _, c := range snap.Carts {
		for _, it := range c.Items {
			b.Queue(`INSERT INTO cart_items(identity, book_id, quantity) VALUES ($1,$2,$3)`,
				string(c.Identity), it.BookID, it.Quantity)
		}
	}
	for _, o := range snap.Orders {
		args, err := orderArgs(o)
		if err != nil {
			return err
		}
		b.Queue(`INSERT INTO orders(`+orderColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`, args...)
	}
	for _, r := range snap.Kyc {
		b.Queue(`INSERT INTO kyc_records(`+kycColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.Identifier, string(r.State), r.ValidUntil, string(r.ClaimedBy), string(r.BoundTo), r.BoundOrderID, r.UpdatedAt)
	}
	for _, r := range snap.Roles {
		b.Queue(`INSERT INTO roles(identity, role) VALUES ($1,$2)`, string(r.Identity), string(r.Role))
	}
	for _, p := range snap.Profiles {
		b.Queue(`INSERT INTO profiles(identity, name) VALUES ($1,$2)`, string(p.Identity), p.Name)
	}
	for _, m := range snap.Messages {
		b.Queue(`INSERT INTO support_messages(`+messageColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
			m.ID, m.Content, string(m.Author), m.Timestamp, m.ResponseTo, m.IsAdminResponse)
	}

	if b.Len() > 0 {
		if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("restore: %w", bookstore.ErrConflict)
			}
			return fmt.Errorf("restore: %w", err)
		}
	}
	return t.PutSettings(ctx, snap.Settings)
}
