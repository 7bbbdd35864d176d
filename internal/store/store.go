package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tcoratger/keth/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial layout (block table without a hash column)
// 1 - Added block.hash, populated on commit
const currentSchemaVersion = 1

// Store provides durable, transactional storage for processed blocks and the
// plain account state they produce.
//
// All handles obtained from Open and Clone share one SQLite connection
// guarded by a single mutex. Every operation holds the mutex for its full
// duration, including whole transactions, so operations are serialized and
// a reader never observes a half-applied commit.
type Store struct {
	conn    *sharedConn
	closed  atomic.Bool
	logger  *slog.Logger
	metrics metrics.StorageMetrics
}

// sharedConn is the connection shared by every handle.
type sharedConn struct {
	mu       sync.Mutex
	db       *sql.DB
	refs     int  // open handles, guarded by mu
	poisoned bool // set when a panic escaped a critical section, guarded by mu
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema. Use ":memory:" for a private in-memory database.
//
// The connection is configured with:
//   - WAL mode for concurrent reads from other processes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Open is idempotent: opening an existing database keeps its contents.
func Open(path string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, newError(CodeInitialization, "open", fmt.Errorf("failed to open database: %w", err))
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, newError(CodeInitialization, "open", fmt.Errorf("failed to connect to database: %w", err))
	}

	// One connection: the mutex below serializes access, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, o.pragmas); err != nil {
		db.Close()
		return nil, newError(CodeInitialization, "open", fmt.Errorf("failed to apply pragmas: %w", err))
	}

	s := &Store{
		conn:    &sharedConn{db: db, refs: 1},
		logger:  o.logger,
		metrics: o.metrics,
	}

	if err := s.Initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// Initialize creates the tables if they are absent and runs pending
// migrations. It is safe to call on every startup.
func (s *Store) Initialize(ctx context.Context) error {
	const op = "initialize"
	return s.withConn(ctx, op, CodeInitialization, func(db *sql.DB) error {
		if err := applySchema(ctx, db); err != nil {
			return newError(CodeInitialization, op, err)
		}
		return nil
	})
}

// Clone returns another handle onto the same connection.
// The connection stays open until every handle has been closed.
func (s *Store) Clone() (*Store, error) {
	if s.closed.Load() {
		return nil, newError(CodeClosed, "clone", ErrClosed)
	}
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.db == nil {
		return nil, newError(CodeClosed, "clone", ErrClosed)
	}
	s.conn.refs++
	return &Store{
		conn:    s.conn,
		logger:  s.logger,
		metrics: s.metrics,
	}, nil
}

// Close releases this handle. The underlying connection is closed when the
// last handle is released. Closing a handle twice is a no-op.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs--
	if c.refs > 0 || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// withConn runs fn while holding the connection lock.
//
// The lock is released on every exit path. A panic inside fn poisons the
// shared connection before it propagates; later calls fail with
// CodePoisoned instead of running against a connection in unknown state.
// Errors that are not already store errors are wrapped with fallback.
func (s *Store) withConn(ctx context.Context, op string, fallback ErrorCode, fn func(db *sql.DB) error) (err error) {
	if s.closed.Load() {
		return newError(CodeClosed, op, ErrClosed)
	}

	start := time.Now()
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return newError(CodePoisoned, op, ErrPoisoned)
	}
	if c.db == nil {
		return newError(CodeClosed, op, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return newError(fallback, op, err)
	}

	defer func() {
		if r := recover(); r != nil {
			c.poisoned = true
			s.logger.Error("panic while holding store lock; connection poisoned",
				"op", op,
				"panic", r,
			)
			panic(r)
		}
	}()

	err = wrapError(fallback, op, fn(c.db))
	s.metrics.StorageOperation(op, time.Since(start), err)
	return err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, p Pragmas) error {
	for _, pragma := range p.statements() {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds block.hash to databases whose block table predates it.
// Existing rows keep a NULL hash and read as "no hash stored".
func migrateToV1(ctx context.Context, db *sql.DB) error {
	has, err := hasColumn(ctx, db, "block", "hash")
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if has {
		return nil
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE block ADD COLUMN hash TEXT"); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// hasColumn reports whether table has a column with the given name.
func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// schemaVersion returns the current user_version. Used for testing.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.conn.db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.conn.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
