package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/tcoratger/keth/internal/metrics"
	"github.com/tcoratger/keth/internal/primitives"
	"github.com/tcoratger/keth/internal/store"
)

//go:generate mockgen -destination=mock_reader.go -package=backend . StateReader

// DefaultCodeCacheSize is the number of bytecodes kept in memory.
const DefaultCodeCacheSize = 1024

const codeCacheName = "bytecode"

// ErrBlockHashNotFound is wrapped when no hash is stored for a block the
// engine asked about.
var ErrBlockHashNotFound = errors.New("block hash not found")

// ErrStateNotFound is wrapped when a read whose policy is AbsenceError
// misses and no more specific sentinel applies.
var ErrStateNotFound = errors.New("state not found")

// Database is the read contract of an execution engine's state source.
type Database interface {
	// Basic returns the account at address, or nil if it does not exist.
	Basic(address common.Address) (*primitives.AccountInfo, error)

	// CodeByHash returns the code with the given hash. Unknown hashes yield
	// empty code.
	CodeByHash(hash common.Hash) (primitives.Bytecode, error)

	// Storage returns the value of a storage slot. Unset slots are zero.
	Storage(address common.Address, index *uint256.Int) (*uint256.Int, error)

	// BlockHash returns the hash of the block with the given number.
	BlockHash(number uint64) (common.Hash, error)
}

// StateReader is the subset of the store the backend reads from.
type StateReader interface {
	GetAccount(ctx context.Context, address common.Address) (*primitives.AccountInfo, error)
	GetBytecode(ctx context.Context, hash common.Hash) (primitives.Bytecode, bool, error)
	GetStorage(ctx context.Context, address common.Address, slot *uint256.Int) (*uint256.Int, error)
	GetBlockHash(ctx context.Context, number uint64) (common.Hash, bool, error)
}

var (
	_ StateReader = (*store.Store)(nil)
	_ Database    = (*Backend)(nil)
)

// Backend serves Database reads from a StateReader.
//
// Misses are resolved through the absence policy table (see PolicyFor).
// Found bytecode is cached by hash; code is content addressed so cached
// entries never go stale. The cache holds private copies and hands out
// fresh ones. Absent code is not cached because an external writer may
// insert it later.
type Backend struct {
	ctx     context.Context
	reader  StateReader
	codes   *lru.Cache
	logger  *slog.Logger
	metrics metrics.CacheMetrics
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// WithMetrics sets the cache metrics sink.
func WithMetrics(m metrics.CacheMetrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// New creates a Backend over reader with a bytecode cache of cacheSize
// entries. A cacheSize of zero or less uses DefaultCodeCacheSize.
func New(reader StateReader, cacheSize int, opts ...Option) (*Backend, error) {
	if reader == nil {
		return nil, errors.New("backend: nil state reader")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCodeCacheSize
	}
	codes, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create code cache: %w", err)
	}

	b := &Backend{
		ctx:     context.Background(),
		reader:  reader,
		codes:   codes,
		logger:  slog.Default(),
		metrics: metrics.NoopCollector{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// WithContext returns a shallow copy of b whose reads use ctx. The copy
// shares the bytecode cache.
func (b *Backend) WithContext(ctx context.Context) *Backend {
	c := *b
	c.ctx = ctx
	return &c
}

// Basic implements Database.
func (b *Backend) Basic(address common.Address) (*primitives.AccountInfo, error) {
	info, err := b.reader.GetAccount(b.ctx, address)
	if err != nil {
		return nil, fmt.Errorf("basic %s: %w", address, err)
	}
	if info == nil {
		return nil, b.absent(MethodBasic, address.Hex())
	}
	return info, nil
}

// CodeByHash implements Database.
func (b *Backend) CodeByHash(hash common.Hash) (primitives.Bytecode, error) {
	if hash == primitives.EmptyCodeHash {
		return primitives.Bytecode{}, nil
	}
	if cached, ok := b.codes.Get(hash); ok {
		b.metrics.CacheHit(codeCacheName)
		return append(primitives.Bytecode{}, cached.(primitives.Bytecode)...), nil
	}
	b.metrics.CacheMiss(codeCacheName)

	code, found, err := b.reader.GetBytecode(b.ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("code by hash %s: %w", hash, err)
	}
	if !found {
		if err := b.absent(MethodCodeByHash, hash.Hex()); err != nil {
			return nil, err
		}
		return primitives.Bytecode{}, nil
	}
	b.codes.Add(hash, append(primitives.Bytecode{}, code...))
	return code, nil
}

// Storage implements Database.
func (b *Backend) Storage(address common.Address, index *uint256.Int) (*uint256.Int, error) {
	value, err := b.reader.GetStorage(b.ctx, address, index)
	if err != nil {
		return nil, fmt.Errorf("storage %s/%s: %w", address, primitives.SlotHash(index).Hex(), err)
	}
	if value == nil {
		if err := b.absent(MethodStorage, address.Hex()+"/"+primitives.SlotHash(index).Hex()); err != nil {
			return nil, err
		}
		return new(uint256.Int), nil
	}
	return value, nil
}

// BlockHash implements Database.
func (b *Backend) BlockHash(number uint64) (common.Hash, error) {
	hash, found, err := b.reader.GetBlockHash(b.ctx, number)
	if err != nil {
		return common.Hash{}, fmt.Errorf("block hash %d: %w", number, err)
	}
	if !found {
		return common.Hash{}, b.absent(MethodBlockHash, fmt.Sprintf("block %d", number))
	}
	return hash, nil
}

// absent applies the absence policy of m to a miss on key. It returns nil
// when the caller should answer with its nil or default value.
func (b *Backend) absent(m Method, key string) error {
	policy := PolicyFor(m)
	b.logger.Debug("state miss", "method", string(m), "key", key, "policy", policy.String())
	if policy != AbsenceError {
		return nil
	}
	b.logger.Warn("state lookup inconsistency", "method", string(m), "key", key)
	return &store.Error{
		Code: store.CodeLookupInconsistency,
		Op:   strings.ReplaceAll(string(m), "_", " "),
		Err:  fmt.Errorf("%s: %w", key, notFound(m)),
	}
}

// notFound returns the sentinel wrapped when m misses under AbsenceError.
func notFound(m Method) error {
	if m == MethodBlockHash {
		return ErrBlockHashNotFound
	}
	return ErrStateNotFound
}

// CachedCodes returns the number of bytecodes in the cache.
func (b *Backend) CachedCodes() int {
	return b.codes.Len()
}
