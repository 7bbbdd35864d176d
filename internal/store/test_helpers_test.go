package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/keth/internal/primitives"
	"github.com/tcoratger/keth/internal/testutil"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s, err := Open(path, opts...)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// commitBlock commits an empty-transaction block with the given diff.
func commitBlock(t *testing.T, s *Store, number uint64, diff *primitives.StateDiff) *primitives.SealedBlock {
	t.Helper()
	block := testutil.Block(number)
	require.NoError(t, s.CommitBlockWithDiff(context.Background(), block, diff))
	return block
}

// seedAccount writes an account outside of any block.
func seedAccount(t *testing.T, s *Store, address common.Address, info *primitives.AccountInfo) {
	t.Helper()
	err := s.UpsertAccount(context.Background(), address, func(*primitives.AccountInfo) (*primitives.AccountInfo, error) {
		return info, nil
	})
	require.NoError(t, err)
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.conn.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// recordingMetrics captures storage observations.
type recordingMetrics struct {
	mu   sync.Mutex
	ops  map[string]int
	errs map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: make(map[string]int), errs: make(map[string]int)}
}

func (m *recordingMetrics) StorageOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
	if err != nil {
		m.errs[op]++
	}
}
