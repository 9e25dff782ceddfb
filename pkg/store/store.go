package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/liliang-cn/agentmem/pkg/logging"
	"github.com/liliang-cn/agentmem/pkg/memerr"

	_ "modernc.org/sqlite"
)

// Store is a single on-disk SQLite database with one writable connection,
// serving vector KNN search, BM25 keyword search, and an audit history log.
// Concurrency model per §4.1/§5: one connection, WAL journal, NORMAL sync,
// 5s busy timeout; all writes are serialized by the caller (the Pool).
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex // serializes writers; readers proceed via WAL snapshot isolation
	closed bool
	log    logging.Logger
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLogger overrides the default no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes its schema. The returned Store owns the sole connection.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, log: logging.Nop()}
	for _, o := range opts {
		o(s)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=cache_size(-2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, memerr.Wrap("store.Open", fmt.Errorf("%w: %v", memerr.ErrStoreUnavailable, err))
	}
	// Single writer by design (§4.1): one connection total.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		s.db.Close()
		return nil, memerr.Wrap("store.Open", fmt.Errorf("%w: %v", memerr.ErrStoreUnavailable, err))
	}

	if err := s.createTables(ctx); err != nil {
		s.db.Close()
		// Failure semantics (§4.1): if the store fails to come up, refuse to
		// start; do not silently degrade.
		return nil, memerr.Wrap("store.Open", fmt.Errorf("%w: %v", memerr.ErrStoreUnavailable, err))
	}

	s.log.Info("store opened", "path", path)
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS memories (
		id TEXT NOT NULL,
		collection TEXT NOT NULL,
		vector BLOB NOT NULL,
		content TEXT NOT NULL,
		user_id TEXT,
		payload TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		expires_at DATETIME,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(collection, user_id);
	CREATE INDEX IF NOT EXISTS idx_memories_expires_at ON memories(expires_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content, collection UNINDEXED, user_id UNINDEXED,
		content='memories', content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, content, collection, user_id)
		VALUES (new.rowid, new.content, new.collection, new.user_id);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content, collection, user_id)
		VALUES('delete', old.rowid, old.content, old.collection, old.user_id);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content, collection, user_id)
		VALUES('delete', old.rowid, old.content, old.collection, old.user_id);
		INSERT INTO memories_fts(rowid, content, collection, user_id)
		VALUES (new.rowid, new.content, new.collection, new.user_id);
	END;

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		memory_id TEXT NOT NULL,
		event TEXT NOT NULL,
		old_text TEXT,
		new_text TEXT,
		actor TEXT,
		at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_memory_id ON history(memory_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// CreateCollection idempotently creates the (vector, metadata) pair for name
// at the given dimension. Name is expected to already carry the instance
// prefix (§6 "Collection naming").
func (s *Store) CreateCollection(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("CreateCollection", memerr.ErrClosed)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections(name, dimension) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`, name, dim)
	if err != nil {
		return memerr.Wrap("CreateCollection", err)
	}
	return nil
}

// CollectionInfo returns the fixed dimension of an existing collection.
func (s *Store) CollectionInfo(ctx context.Context, name string) (Collection, error) {
	var c Collection
	c.Name = name
	row := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, name)
	if err := row.Scan(&c.Dimension); err != nil {
		if err == sql.ErrNoRows {
			return c, memerr.Wrap("CollectionInfo", memerr.ErrNotFound)
		}
		return c, memerr.Wrap("CollectionInfo", err)
	}
	return c, nil
}

// ListCollections returns every known collection.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, dimension FROM collections ORDER BY name`)
	if err != nil {
		return nil, memerr.Wrap("ListCollections", err)
	}
	defer rows.Close()
	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Dimension); err != nil {
			return nil, memerr.Wrap("ListCollections", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCollection drops every record in the collection along with its entry
// in the collections table.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("DeleteCollection", memerr.ErrClosed)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Wrap("DeleteCollection", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE collection = ?`, name); err != nil {
		return memerr.Wrap("DeleteCollection", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return memerr.Wrap("DeleteCollection", err)
	}
	return memerr.Wrap("DeleteCollection", tx.Commit())
}

// Reset drops every collection and the history log, returning the database
// to its freshly-opened state. Used by configuration-reload code paths (§9).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("Reset", memerr.ErrClosed)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories; DELETE FROM collections; DELETE FROM history;`)
	return memerr.Wrap("Reset", err)
}

func newID() string { return uuid.NewString() }
