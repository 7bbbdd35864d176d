package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/keth/internal/testutil"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	commitBlock(t, s1, 1, nil)
	require.NoError(t, s1.Close())

	s2, err := Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s2.Close()

	block, err := s2.GetBlock(ctx, testutil.Block(1).Number())
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, testutil.Block(1).Hash, block.Hash)
}

func TestInitialize_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	for _, table := range []string{"block", "account", "bytecode", "storage"} {
		var name string
		err := s.conn.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after repeated initialization", table)
	}

	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", WithLogger(discardLogger()))
	require.Error(t, err)
	assert.True(t, IsInitializationError(err), "got %v", err)
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1")) // NORMAL
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_CustomPragmas(t *testing.T) {
	s := createTestStore(t, WithPragmas(Pragmas{JournalMode: "DELETE", Synchronous: "FULL"}))

	assert.NoError(t, s.verifyPragma("journal_mode", "delete"))
	assert.NoError(t, s.verifyPragma("synchronous", "2")) // FULL
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:", WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()

	commitBlock(t, s, 1, nil)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Blocks)
}

func TestOpen_MigratesLegacyBlockTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Layout written by earlier versions: no hash column, no user_version.
	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE block (
			id     INTEGER PRIMARY KEY,
			number TEXT UNIQUE,
			data   TEXT
		);
		INSERT INTO block (number, data) VALUES ('7', '{}');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()

	has, err := hasColumn(context.Background(), s.conn.db, "block", "hash")
	require.NoError(t, err)
	assert.True(t, has)

	_, found, err := s.GetBlockHash(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, found, "legacy rows carry no hash")

	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestClose_NilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}

func TestClosedHandle_RejectsOperations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetAccount(context.Background(), testutil.Address(1))
	require.Error(t, err)
	assert.Equal(t, CodeClosed, ErrorCodeOf(err))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = s.Clone()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClone_SharesConnectionUntilLastClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLogger(discardLogger()))
	require.NoError(t, err)

	clone, err := s.Clone()
	require.NoError(t, err)
	defer clone.Close()

	commitBlock(t, s, 1, nil)
	require.NoError(t, s.Close())

	// The clone still sees the shared connection and its data.
	block, err := clone.GetBlock(context.Background(), testutil.Block(1).Number())
	require.NoError(t, err)
	assert.NotNil(t, block)
}

func TestStore_ReportsOperationsToMetrics(t *testing.T) {
	m := newRecordingMetrics()
	s := createTestStore(t, WithMetrics(m))
	ctx := context.Background()

	commitBlock(t, s, 1, nil)
	_, err := s.GetAccount(ctx, testutil.Address(1))
	require.NoError(t, err)
	err = s.CommitBlockWithDiff(ctx, testutil.Block(1), nil)
	require.Error(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 2, m.ops["commit block"])
	assert.Equal(t, 1, m.errs["commit block"])
	assert.Equal(t, 1, m.ops["get account"])
}

func TestStore_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetAccount(ctx, testutil.Address(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
