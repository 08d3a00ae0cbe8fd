// Package store provides SQLite-backed persistence for transactions, labels,
// and feature rows, grounded on the teacher's feature-matrix loading idiom in
// internal/features/store.go but replacing the read-only parquet snapshot
// with a live, upsertable database of record.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog/log"
)

// Store wraps a SQLite connection pool.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	merchant TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	amount REAL NOT NULL,
	category TEXT,
	deleted_at TEXT
);
CREATE TABLE IF NOT EXISTS labels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	txn_id INTEGER NOT NULL,
	label TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_labels_txn ON labels(txn_id, created_at);
CREATE TABLE IF NOT EXISTS feature_rows (
	txn_id INTEGER PRIMARY KEY,
	ts_month TEXT NOT NULL,
	merchant_canonical TEXT NOT NULL,
	tokens TEXT NOT NULL,
	abs_amount REAL NOT NULL,
	channel TEXT NOT NULL,
	dow INTEGER NOT NULL,
	is_weekend INTEGER NOT NULL,
	is_subscription INTEGER NOT NULL,
	norm_desc TEXT NOT NULL,
	built_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feature_rows_month ON feature_rows(ts_month);
`

// Open creates (or attaches to) a SQLite database at path and applies the
// schema. An empty path opens an in-memory database, used by tests.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers across connections
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Str("path", path).Msg("store opened")
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers that need a transaction spanning
// multiple store operations (e.g. the feature builder's batch upsert).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the connection is alive, used by the health handler.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
