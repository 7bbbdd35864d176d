package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/keth/internal/primitives"
	"github.com/tcoratger/keth/internal/testutil"
)

func TestCommitBlockWithDiff_UpsertAndRemove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)
	y := testutil.Address(2)

	seedAccount(t, s, y, testutil.Account(5, 0))

	diff := primitives.NewStateDiff().
		UpdateAccount(x, testutil.Account(10, 0)).
		RemoveAccount(y)
	block := commitBlock(t, s, 1, diff)

	stored, err := s.GetBlock(ctx, uint256.NewInt(1))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, block.Hash, stored.Hash)
	assert.Equal(t, block.Header.Hash(), stored.Header.Hash())

	accountX, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	require.NotNil(t, accountX)
	assert.Equal(t, uint64(10), accountX.Balance.Uint64())

	accountY, err := s.GetAccount(ctx, y)
	require.NoError(t, err)
	assert.Nil(t, accountY)
}

func TestCommitBlockWithDiff_LastWriteWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)

	commitBlock(t, s, 1, primitives.NewStateDiff().UpdateAccount(x, testutil.Account(1, 1)))
	commitBlock(t, s, 2, primitives.NewStateDiff().UpdateAccount(x, testutil.Account(2, 2)))

	info, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.True(t, testutil.Account(2, 2).Equal(info))
	assert.Equal(t, 1, countRows(t, s, "account"))
}

func TestCommitBlockWithDiff_DuplicateNumberRollsBackEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)
	y := testutil.Address(2)

	seedAccount(t, s, y, testutil.Account(5, 0))
	commitBlock(t, s, 1, nil)

	diff := primitives.NewStateDiff().
		UpdateAccount(x, testutil.Account(10, 0)).
		RemoveAccount(y)
	err := s.CommitBlockWithDiff(ctx, testutil.Block(1), diff)

	require.Error(t, err)
	assert.True(t, IsTransactionError(err), "got %v", err)
	assert.ErrorIs(t, err, ErrDuplicateBlock)

	accountX, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.Nil(t, accountX, "account from failed diff must not be visible")

	accountY, err := s.GetAccount(ctx, y)
	require.NoError(t, err)
	assert.NotNil(t, accountY, "removal from failed diff must not be applied")
	assert.Equal(t, 1, countRows(t, s, "block"))
}

func TestCommitBlockWithDiff_FailureMidDiffRollsBackEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	first := testutil.Address(1)
	second := testutil.Address(2)

	// Reject the second account write; the block row and the first account
	// are already written inside the transaction when this fires.
	_, err := s.conn.db.Exec(`
		CREATE TRIGGER reject_second BEFORE INSERT ON account
		WHEN NEW.address = '` + primitives.AddressKey(second) + `'
		BEGIN SELECT RAISE(ABORT, 'forced failure'); END;
	`)
	require.NoError(t, err)

	diff := primitives.NewStateDiff().
		UpdateAccount(first, testutil.Account(1, 0)).
		UpdateAccount(second, testutil.Account(2, 0)).
		SetStorage(first, uint256.NewInt(1), uint256.NewInt(1))
	diff.AddContract(primitives.Bytecode{0x60, 0x00})

	err = s.CommitBlockWithDiff(ctx, testutil.Block(1), diff)
	require.Error(t, err)
	assert.True(t, IsTransactionError(err), "got %v", err)

	block, err := s.GetBlock(ctx, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Equal(t, 0, countRows(t, s, "block"))
	assert.Equal(t, 0, countRows(t, s, "account"))
	assert.Equal(t, 0, countRows(t, s, "storage"))
	assert.Equal(t, 0, countRows(t, s, "bytecode"))

	// The store stays usable after a rolled-back commit.
	_, err = s.conn.db.Exec(`DROP TRIGGER reject_second`)
	require.NoError(t, err)
	commitBlock(t, s, 1, diff)
	assert.Equal(t, 2, countRows(t, s, "account"))
}

func TestCommitBlockWithDiff_InvalidBlockWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	block := primitives.NewSealedBlock(testutil.Header(1), nil, []common.Address{testutil.Address(9)})
	diff := primitives.NewStateDiff().UpdateAccount(testutil.Address(1), testutil.Account(1, 0))

	err := s.CommitBlockWithDiff(ctx, block, diff)
	require.Error(t, err)
	assert.True(t, IsTransactionError(err))
	assert.ErrorIs(t, err, primitives.ErrSenderMismatch)
	assert.Equal(t, 0, countRows(t, s, "account"))
}

func TestCommitBlockWithDiff_RejectsForeignHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	block := testutil.Block(1)
	block.Hash = testutil.Block(2).Hash

	err := s.CommitBlockWithDiff(ctx, block, nil)
	require.Error(t, err)
	assert.True(t, IsTransactionError(err))
	assert.ErrorIs(t, err, primitives.ErrHashMismatch)
	assert.Equal(t, 0, countRows(t, s, "block"))
}

func TestCommitBlockWithDiff_NilDiffStoresBlockOnly(t *testing.T) {
	s := createTestStore(t)

	commitBlock(t, s, 3, nil)

	assert.Equal(t, 1, countRows(t, s, "block"))
	assert.Equal(t, 0, countRows(t, s, "account"))
}

func TestCommitBlockWithDiff_StorageWritesAndClears(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)
	slot := uint256.NewInt(7)

	commitBlock(t, s, 1, primitives.NewStateDiff().
		UpdateAccount(x, testutil.Account(0, 1)).
		SetStorage(x, slot, uint256.NewInt(42)))

	value, err := s.GetStorage(ctx, x, slot)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, uint64(42), value.Uint64())

	commitBlock(t, s, 2, primitives.NewStateDiff().SetStorage(x, slot, new(uint256.Int)))

	value, err = s.GetStorage(ctx, x, slot)
	require.NoError(t, err)
	assert.Nil(t, value, "zero value clears the slot")
}

func TestCommitBlockWithDiff_RemovalWipesStorage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)

	commitBlock(t, s, 1, primitives.NewStateDiff().
		UpdateAccount(x, testutil.Account(1, 1)).
		SetStorage(x, uint256.NewInt(1), uint256.NewInt(1)).
		SetStorage(x, uint256.NewInt(2), uint256.NewInt(2)))
	require.Equal(t, 2, countRows(t, s, "storage"))

	commitBlock(t, s, 2, primitives.NewStateDiff().RemoveAccount(x))

	info, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.Equal(t, 0, countRows(t, s, "storage"))
}

func TestCommitBlockWithDiff_StoresContracts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	code := primitives.Bytecode{0x60, 0x2a, 0x60, 0x00, 0x52}

	diff := primitives.NewStateDiff()
	hash := diff.AddContract(code)
	diff.UpdateAccount(testutil.Address(1), testutil.Contract(0, code))
	commitBlock(t, s, 1, diff)

	stored, found, err := s.GetBytecode(ctx, hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(code), []byte(stored))
}

func TestCommitBlockWithDiff_RecordsBlockHash(t *testing.T) {
	s := createTestStore(t)
	block := commitBlock(t, s, 12, nil)

	hash, found, err := s.GetBlockHash(context.Background(), 12)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, block.Hash, hash)
}

func TestUpsertAccount_AppliesTransformation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)

	seedAccount(t, s, x, testutil.Account(10, 0))

	err := s.UpsertAccount(ctx, x, func(current *primitives.AccountInfo) (*primitives.AccountInfo, error) {
		next := current.Copy()
		next.Balance.AddUint64(next.Balance, 5)
		next.Nonce++
		return next, nil
	})
	require.NoError(t, err)

	info, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), info.Balance.Uint64())
	assert.Equal(t, uint64(1), info.Nonce)
}

func TestUpsertAccount_SeesNilForMissingAccount(t *testing.T) {
	s := createTestStore(t)

	var seen *primitives.AccountInfo
	called := false
	err := s.UpsertAccount(context.Background(), testutil.Address(1), func(current *primitives.AccountInfo) (*primitives.AccountInfo, error) {
		called = true
		seen = current
		return primitives.DefaultAccountInfo(), nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, seen)
	assert.Equal(t, 1, countRows(t, s, "account"))
}

func TestUpsertAccount_UpdateErrorAborts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)
	seedAccount(t, s, x, testutil.Account(10, 0))

	errRejected := errors.New("rejected")
	err := s.UpsertAccount(ctx, x, func(*primitives.AccountInfo) (*primitives.AccountInfo, error) {
		return nil, errRejected
	})
	require.ErrorIs(t, err, errRejected)
	assert.True(t, IsTransactionError(err))

	err = s.UpsertAccount(ctx, x, func(*primitives.AccountInfo) (*primitives.AccountInfo, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNilAccount)

	info, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), info.Balance.Uint64())
}

func TestUpsertAccount_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)
	seedAccount(t, s, x, testutil.Account(0, 0))

	increment := func(current *primitives.AccountInfo) (*primitives.AccountInfo, error) {
		next := current.Copy()
		next.Balance.AddUint64(next.Balance, 1)
		return next, nil
	}

	const workers = 2
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		clone, err := s.Clone()
		require.NoError(t, err)
		defer clone.Close()

		wg.Add(1)
		go func(h *Store) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				errs <- h.UpsertAccount(ctx, x, increment)
			}
		}(clone)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	info, err := s.GetAccount(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), info.Balance.Uint64())
}

func TestUpsertAccount_PanicPoisonsStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	x := testutil.Address(1)

	clone, err := s.Clone()
	require.NoError(t, err)
	defer clone.Close()

	assert.Panics(t, func() {
		_ = s.UpsertAccount(ctx, x, func(*primitives.AccountInfo) (*primitives.AccountInfo, error) {
			panic("update exploded")
		})
	})

	_, err = s.GetAccount(ctx, x)
	require.Error(t, err)
	assert.True(t, IsPoisoned(err), "got %v", err)
	assert.ErrorIs(t, err, ErrPoisoned)

	// Every handle on the shared connection is poisoned.
	err = clone.CommitBlockWithDiff(ctx, testutil.Block(1), nil)
	assert.True(t, IsPoisoned(err), "got %v", err)
}

func TestPutBytecode_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	code := primitives.Bytecode{0x60, 0x01}

	h1, err := s.PutBytecode(ctx, code)
	require.NoError(t, err)
	h2, err := s.PutBytecode(ctx, code)
	require.NoError(t, err)

	assert.Equal(t, code.Hash(), h1)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, countRows(t, s, "bytecode"))
}
