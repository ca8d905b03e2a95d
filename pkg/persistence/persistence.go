// Package persistence is the SQL-backed system of record for Octopus:
// workspaces, projects, memberships, the file registry, upload sessions,
// models and model versions, OAuth apps and authorization codes, and the
// job outbox. Plain database/sql, driver selected by name, hand-written
// queries rather than an ORM, plus a transactional helper so the
// model-version-plus-job-enqueue write lands atomically.
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/octopus-bim/octopus/pkg/persistence/migrate"
)

// dbtx is implemented by both *sql.DB and *sql.Tx, letting every
// entity-query method run either standalone or inside WithTx without
// duplication.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the persistence handle. Entity operations are defined as
// methods on Store in the sibling files of this package (workspaces.go,
// projects.go, files.go, and so on); each resolves the dbtx to use via
// querier so it can be called inside or outside a transaction.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens a sql.DB for the named driver ("sqlite3" or "mysql") and runs
// any pending migrations.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("persistence: ping %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// A single shared connection avoids SQLITE_BUSY from concurrent
		// writers; sqlite serializes writes internally regardless.
		db.SetMaxOpenConns(1)
	}
	if err := migrate.Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier resolves the dbtx every method in this package runs against:
// txFromContext(ctx) if one is active, else s.db.
func (s *Store) querier(ctx context.Context) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
