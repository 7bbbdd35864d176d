package backend

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tcoratger/keth/internal/primitives"
	"github.com/tcoratger/keth/internal/store"
	"github.com/tcoratger/keth/internal/testutil"
)

func newMockBackend(t *testing.T, opts ...Option) (*Backend, *MockStateReader) {
	t.Helper()
	ctrl := gomock.NewController(t)
	reader := NewMockStateReader(ctrl)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	b, err := New(reader, 4, opts...)
	require.NoError(t, err)
	return b, reader
}

type cacheCounts struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (c *cacheCounts) CacheHit(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits++
}

func (c *cacheCounts) CacheMiss(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
}

func TestNew_RejectsNilReader(t *testing.T) {
	_, err := New(nil, 0)
	require.Error(t, err)
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		method Method
		want   Absence
	}{
		{MethodBasic, AbsenceNone},
		{MethodCodeByHash, AbsenceDefault},
		{MethodStorage, AbsenceDefault},
		{MethodBlockHash, AbsenceError},
		{Method("unknown"), AbsenceError},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.want, PolicyFor(tt.method))
		})
	}
	assert.Len(t, Methods, 4)
}

func TestBasic_PassesThroughAbsence(t *testing.T) {
	b, reader := newMockBackend(t)
	address := testutil.Address(1)
	reader.EXPECT().GetAccount(gomock.Any(), address).Return(nil, nil)

	info, err := b.Basic(address)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestBasic_ReturnsAccount(t *testing.T) {
	b, reader := newMockBackend(t)
	address := testutil.Address(1)
	reader.EXPECT().GetAccount(gomock.Any(), address).Return(testutil.Account(7, 1), nil)

	info, err := b.Basic(address)
	require.NoError(t, err)
	assert.True(t, testutil.Account(7, 1).Equal(info))
}

func TestBasic_PropagatesReaderError(t *testing.T) {
	b, reader := newMockBackend(t)
	boom := errors.New("boom")
	reader.EXPECT().GetAccount(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := b.Basic(testutil.Address(1))
	assert.ErrorIs(t, err, boom)
}

func TestCodeByHash_AbsentYieldsEmptyCode(t *testing.T) {
	counts := &cacheCounts{}
	b, reader := newMockBackend(t, WithMetrics(counts))
	hash := primitives.Bytecode{0x60}.Hash()
	reader.EXPECT().GetBytecode(gomock.Any(), hash).Return(nil, false, nil).Times(2)

	for i := 0; i < 2; i++ {
		code, err := b.CodeByHash(hash)
		require.NoError(t, err)
		require.NotNil(t, code)
		assert.True(t, code.IsEmpty())
	}
	assert.Equal(t, 0, b.CachedCodes())
	assert.Equal(t, 2, counts.misses)
}

func TestCodeByHash_EmptyCodeHashSkipsReader(t *testing.T) {
	b, _ := newMockBackend(t)

	code, err := b.CodeByHash(primitives.EmptyCodeHash)
	require.NoError(t, err)
	assert.True(t, code.IsEmpty())
}

func TestCodeByHash_CachesFoundCode(t *testing.T) {
	counts := &cacheCounts{}
	b, reader := newMockBackend(t, WithMetrics(counts))
	code := primitives.Bytecode{0x60, 0x00}
	reader.EXPECT().GetBytecode(gomock.Any(), code.Hash()).Return(code, true, nil).Times(1)

	for i := 0; i < 3; i++ {
		got, err := b.CodeByHash(code.Hash())
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}
	assert.Equal(t, 1, b.CachedCodes())
	assert.Equal(t, 2, counts.hits)
	assert.Equal(t, 1, counts.misses)
}

func TestCodeByHash_PropagatesReaderError(t *testing.T) {
	b, reader := newMockBackend(t)
	boom := errors.New("boom")
	reader.EXPECT().GetBytecode(gomock.Any(), gomock.Any()).Return(nil, false, boom)

	_, err := b.CodeByHash(common.Hash{1})
	assert.ErrorIs(t, err, boom)
}

func TestStorage_AbsentYieldsZero(t *testing.T) {
	b, reader := newMockBackend(t)
	reader.EXPECT().GetStorage(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	value, err := b.Storage(testutil.Address(1), uint256.NewInt(3))
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.True(t, value.IsZero())
}

func TestStorage_ReturnsStoredValue(t *testing.T) {
	b, reader := newMockBackend(t)
	reader.EXPECT().GetStorage(gomock.Any(), testutil.Address(1), uint256.NewInt(3)).Return(uint256.NewInt(42), nil)

	value, err := b.Storage(testutil.Address(1), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value.Uint64())
}

func TestBlockHash_AbsentIsLookupInconsistency(t *testing.T) {
	b, reader := newMockBackend(t)
	reader.EXPECT().GetBlockHash(gomock.Any(), uint64(9)).Return(common.Hash{}, false, nil)

	_, err := b.BlockHash(9)
	require.Error(t, err)
	assert.True(t, store.IsLookupInconsistency(err))
	assert.ErrorIs(t, err, ErrBlockHashNotFound)
}

func TestBlockHash_ReturnsStoredHash(t *testing.T) {
	b, reader := newMockBackend(t)
	want := common.HexToHash("0xabc")
	reader.EXPECT().GetBlockHash(gomock.Any(), uint64(2)).Return(want, true, nil)

	got, err := b.BlockHash(2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBlockHash_PropagatesReaderError(t *testing.T) {
	b, reader := newMockBackend(t)
	boom := errors.New("boom")
	reader.EXPECT().GetBlockHash(gomock.Any(), gomock.Any()).Return(common.Hash{}, false, boom)

	_, err := b.BlockHash(1)
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.IsLookupInconsistency(err))
}

func TestCodeByHash_CallerMutationDoesNotReachCache(t *testing.T) {
	b, reader := newMockBackend(t)
	code := primitives.Bytecode{0x60, 0x01}
	hash := code.Hash()
	reader.EXPECT().GetBytecode(gomock.Any(), hash).Return(code, true, nil).Times(1)

	first, err := b.CodeByHash(hash)
	require.NoError(t, err)
	first[0] = 0xff
	code[1] = 0xff

	second, err := b.CodeByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, primitives.Bytecode{0x60, 0x01}, second)
	assert.Equal(t, hash, second.Hash())

	second[1] = 0x00
	third, err := b.CodeByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, hash, third.Hash())
}

func TestStorage_ErrorWithNilSlot(t *testing.T) {
	b, reader := newMockBackend(t)
	boom := errors.New("boom")
	reader.EXPECT().GetStorage(gomock.Any(), gomock.Any(), gomock.Nil()).Return(nil, boom)

	_, err := b.Storage(testutil.Address(1), nil)
	assert.ErrorIs(t, err, boom)
}

// withPolicy overrides the absence policy of method for the duration of t.
func withPolicy(t *testing.T, method Method, absence Absence) {
	t.Helper()
	previous, ok := absencePolicy[method]
	absencePolicy[method] = absence
	t.Cleanup(func() {
		if ok {
			absencePolicy[method] = previous
		} else {
			delete(absencePolicy, method)
		}
	})
}

func TestAbsencePolicyDrivesMisses(t *testing.T) {
	address := testutil.Address(1)
	hash := primitives.Bytecode{0x60}.Hash()

	misses := map[Method]func(b *Backend, reader *MockStateReader) error{
		MethodBasic: func(b *Backend, reader *MockStateReader) error {
			reader.EXPECT().GetAccount(gomock.Any(), address).Return(nil, nil)
			_, err := b.Basic(address)
			return err
		},
		MethodCodeByHash: func(b *Backend, reader *MockStateReader) error {
			reader.EXPECT().GetBytecode(gomock.Any(), hash).Return(nil, false, nil)
			_, err := b.CodeByHash(hash)
			return err
		},
		MethodStorage: func(b *Backend, reader *MockStateReader) error {
			reader.EXPECT().GetStorage(gomock.Any(), address, gomock.Any()).Return(nil, nil)
			_, err := b.Storage(address, uint256.NewInt(1))
			return err
		},
		MethodBlockHash: func(b *Backend, reader *MockStateReader) error {
			reader.EXPECT().GetBlockHash(gomock.Any(), uint64(3)).Return(common.Hash{}, false, nil)
			_, err := b.BlockHash(3)
			return err
		},
	}

	for _, method := range Methods {
		miss := misses[method]
		t.Run(string(method)+"/table", func(t *testing.T) {
			b, reader := newMockBackend(t)
			err := miss(b, reader)
			if PolicyFor(method) == AbsenceError {
				assert.True(t, store.IsLookupInconsistency(err))
			} else {
				assert.NoError(t, err)
			}
		})
		t.Run(string(method)+"/error", func(t *testing.T) {
			withPolicy(t, method, AbsenceError)
			b, reader := newMockBackend(t)
			err := miss(b, reader)
			require.Error(t, err)
			assert.True(t, store.IsLookupInconsistency(err))
		})
		t.Run(string(method)+"/default", func(t *testing.T) {
			withPolicy(t, method, AbsenceDefault)
			b, reader := newMockBackend(t)
			assert.NoError(t, miss(b, reader))
		})
	}
}

func TestBlockHash_AbsentErrorNamesOperation(t *testing.T) {
	b, reader := newMockBackend(t)
	reader.EXPECT().GetBlockHash(gomock.Any(), uint64(9)).Return(common.Hash{}, false, nil)

	_, err := b.BlockHash(9)
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "block hash", storeErr.Op)
}

func TestBasic_AbsentUnderErrorPolicyWrapsStateNotFound(t *testing.T) {
	withPolicy(t, MethodBasic, AbsenceError)
	b, reader := newMockBackend(t)
	reader.EXPECT().GetAccount(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := b.Basic(testutil.Address(1))
	assert.ErrorIs(t, err, ErrStateNotFound)
}
