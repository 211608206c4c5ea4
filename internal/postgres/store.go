// Package postgres implements bookstore.Store on PostgreSQL. Checks that
// must not race are single-statement compare-and-swap updates, so row
// locks taken by the first writer make the second one observe its result.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

const (
	uniqueViolation = "23505"
	numericOverflow = "22003"
)

type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

var _ bookstore.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(context.Context, bookstore.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, fn)
}

// View runs fn in a repeatable-read transaction so snapshots are consistent.
func (s *Store) View(ctx context.Context, fn func(context.Context, bookstore.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context, bookstore.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNumericOverflow(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == numericOverflow
}

// notFound turns pgx.ErrNoRows into the store sentinel.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, bookstore.ErrNotFound)
	}
	return err
}

func (t *pgTx) exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(`+sql+`)`, args...).Scan(&ok)
	return ok, err
}
