// Package sqlite implements repository.DocumentStore on top of SQLite.
//
// WHY A DOCUMENT TABLE AND NOT USER/FAVORITE TABLES?
// The favorites logic works on whole collections (load everything, change
// it in memory, store everything). Keeping each collection as one row lets
// us swap this backend in for the JSON files without touching a single
// line of the service. What SQLite adds over plain files is durability
// (WAL, fsync handled for us) and a single place to put all collections.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler
// needed, cross-compilation just works.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/book-favorites/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and stores one JSON document per
// collection.
type DB struct {
	conn *sql.DB
}

var _ repository.DocumentStore = (*DB)(nil)

// New opens (or creates) the database and runs migrations.
//
// dbPath examples:
//   - "data/favorites.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its OWN empty
	// database. One connection keeps all callers on the same data, and
	// SQLite serializes writers anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the documents table. CREATE TABLE IF NOT EXISTS is safe
// to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT PRIMARY KEY,
			body       TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Load decodes the stored document for c into v.
// A collection that was never stored loads as an empty array.
func (db *DB) Load(ctx context.Context, c repository.Collection, v any) error {
	var body string
	err := db.conn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ?`, string(c),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		body = "[]"
	} else if err != nil {
		return fmt.Errorf("sqlite: loading %s: %w", c, err)
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("sqlite: decoding %s: %w", c, err)
	}
	return nil
}

// Store replaces the document for c with the JSON encoding of v.
//
// UPSERT:
// INSERT ... ON CONFLICT DO UPDATE writes the row whether or not the
// collection existed before, in a single statement.
func (db *DB) Store(ctx context.Context, c repository.Collection, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s: %w", c, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, body, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		string(c), string(body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing %s: %w", c, err)
	}
	return nil
}

// Has reports whether c has ever been stored.
func (db *DB) Has(ctx context.Context, c repository.Collection) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, string(c),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s: %w", c, err)
	}
	return n > 0, nil
}
