// Package sqlstore persists the production collections through sqlx. The
// same queries run on postgres and sqlite: they are written with '?'
// placeholders and rebound for the connected driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/internal/production"
)

// Store implements production.Store.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// New wraps an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// Tx commits fn's writes together. Nested calls reuse the open transaction.
func (s *Store) Tx(ctx context.Context, fn func(production.Store) error) error {
	if _, inTx := s.ext.(*sqlx.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{db: s.db, ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.DB.Warn("rollback failed",
				slog.String("event", "db.tx"),
				slog.String("err", rbErr.Error()),
			)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) rebind(q string) string {
	return s.ext.Rebind(q)
}

func (s *Store) get(ctx context.Context, dst any, kind, q string, args ...any) error {
	err := sqlx.GetContext(ctx, s.ext, dst, s.rebind(q), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", kind, production.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", kind, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, dst any, kind, q string, args ...any) error {
	if err := sqlx.SelectContext(ctx, s.ext, dst, s.rebind(q), args...); err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}
	return nil
}

// upsert runs a named INSERT ... ON CONFLICT statement.
func (s *Store) upsert(ctx context.Context, kind, q string, row any) error {
	if _, err := sqlx.NamedExecContext(ctx, s.ext, q, row); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, kind, table, id string) error {
	res, err := s.ext.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, production.ErrNotFound)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
