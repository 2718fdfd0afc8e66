// Package store implements the embedded local entity store: a SQLite
// database with serialized write transactions and change notifications for
// live queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/carnetapp/carnet/internal/client/migrations"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/dbx"
)

// Store wraps the SQLite database. At most one write transaction is in
// flight at a time; reads run concurrently against the last committed state.
type Store struct {
	db       *sql.DB
	notifier *Notifier

	// writeMu serializes Transact calls. TryTransact uses TryLock to reject
	// instead of queueing.
	writeMu sync.Mutex
}

// Open opens (or creates) the database at dsn and applies pending
// migrations. Use ":memory:" for tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and matches
	// the one-writer model.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, notifier: NewNotifier()}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// DB returns a handle for read-only queries. Writes must go through
// Transact so change tracking and notifications stay correct.
func (s *Store) DB() dbx.DBTX { return s.db }

// Notifier exposes the change notifier for the observation layer.
func (s *Store) Notifier() *Notifier { return s.notifier }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Transact runs fn inside an exclusive write transaction. Either every
// mutation inside fn commits atomically or none do. Concurrent callers
// queue. After a successful commit, subscribers of the touched tables are
// notified synchronously.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.transact(ctx, fn)
}

// TryTransact is Transact for callers that prefer rejection over queueing:
// if a write transaction is already in flight it returns
// common.ErrStoreBusy without running fn.
func (s *Store) TryTransact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if !s.writeMu.TryLock() {
		return common.ErrStoreBusy
	}
	defer s.writeMu.Unlock()
	return s.transact(ctx, fn)
}

func (s *Store) transact(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	wrapped := &Tx{touched: make(map[Table]struct{})}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		wrapped.DBTX = tx
		return fn(ctx, wrapped)
	})
	if err != nil {
		return err
	}

	s.notifier.Publish(wrapped.touched)
	return nil
}

// Wipe deletes every row of every entity table in one transaction. Used by
// the identity guard on account switches.
func (s *Store) Wipe(ctx context.Context) error {
	return s.Transact(ctx, func(ctx context.Context, tx *Tx) error {
		for _, table := range AllTables() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+string(table)); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
			tx.Touch(table)
		}
		return nil
	})
}
