package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Every table carries a seq column so exports keep insertion order.
const schema = `
CREATE TABLE IF NOT EXISTS books (
	seq            BIGSERIAL,
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	author         TEXT NOT NULL,
	price          BIGINT NOT NULL CHECK (price >= 0),
	available      BOOLEAN NOT NULL,
	single_copy    BOOLEAN NOT NULL,
	kyc_restricted BOOLEAN NOT NULL,
	content        TEXT,
	media          JSONB NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS sales (
	seq      BIGSERIAL,
	book_id  TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	buyer    TEXT NOT NULL,
	sold_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS balances (
	seq      BIGSERIAL,
	identity TEXT PRIMARY KEY,
	amount   BIGINT NOT NULL CHECK (amount >= 0)
);
CREATE TABLE IF NOT EXISTS cart_items (
	seq      BIGSERIAL,
	identity TEXT NOT NULL,
	book_id  TEXT NOT NULL,
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (identity, book_id)
);
CREATE TABLE IF NOT EXISTS orders (
	seq                BIGSERIAL,
	order_id           TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	items              JSONB NOT NULL,
	total_amount       BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	delivered_book_ids JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id);
CREATE TABLE IF NOT EXISTS kyc_records (
	seq            BIGSERIAL,
	identifier     TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	valid_until    TIMESTAMPTZ NOT NULL,
	claimed_by     TEXT NOT NULL DEFAULT '',
	bound_to       TEXT NOT NULL DEFAULT '',
	bound_order_id TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS kyc_bound_to_uniq ON kyc_records (bound_to) WHERE bound_order_id <> '';
CREATE TABLE IF NOT EXISTS roles (
	seq      BIGSERIAL,
	identity TEXT PRIMARY KEY,
	role     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	seq      BIGSERIAL,
	identity TEXT PRIMARY KEY,
	name     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS support_messages (
	seq               BIGSERIAL,
	id                BIGINT PRIMARY KEY,
	content           TEXT NOT NULL,
	author            TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	response_to       BIGINT,
	is_admin_response BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	id               SMALLINT PRIMARY KEY CHECK (id = 1),
	next_message_id  BIGINT NOT NULL,
	designated_owner TEXT NOT NULL DEFAULT ''
);
INSERT INTO settings (id, next_message_id) VALUES (1, 1) ON CONFLICT (id) DO NOTHING;
`

// dataTables are wiped by Restore, in dependency-free order.
var dataTables = []string{
	"books", "sales", "balances", "cart_items", "orders",
	"kyc_records", "roles", "profiles", "support_messages",
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
