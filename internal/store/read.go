package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tcoratger/keth/internal/primitives"
)

// rowQueryer is satisfied by both *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetBlock returns the block with the given number.
// Returns nil and no error if the block is not stored.
func (s *Store) GetBlock(ctx context.Context, number *uint256.Int) (*primitives.SealedBlock, error) {
	const op = "get block"
	key := primitives.BlockNumberKey(number)

	var block *primitives.SealedBlock
	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		var data string
		err := db.QueryRowContext(ctx, `SELECT data FROM block WHERE number = ?`, key).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query block %s: %w", key, err)
		}
		block, err = unmarshalBlock(data)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("block lookup", "number", key, "found", block != nil)
	return block, nil
}

// GetBlockHash returns the hash stored for the given block number.
// found is false when no block, or no hash, is stored for the number.
func (s *Store) GetBlockHash(ctx context.Context, number uint64) (hash common.Hash, found bool, err error) {
	const op = "get block hash"
	key := primitives.BlockHeightKey(number)

	err = s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		var text sql.NullString
		err := db.QueryRowContext(ctx, `SELECT hash FROM block WHERE number = ?`, key).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query block hash %s: %w", key, err)
		}
		// Rows written before schema v1 have no hash.
		if !text.Valid {
			return nil
		}
		hash, err = parseHash(text.String)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return common.Hash{}, false, err
	}
	return hash, found, nil
}

// LatestBlockNumber returns the highest stored block number, or nil if no
// block is stored.
func (s *Store) LatestBlockNumber(ctx context.Context) (*uint256.Int, error) {
	const op = "latest block"

	var latest *uint256.Int
	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		// Numbers are decimal TEXT without leading zeros, so ordering by
		// length first gives numeric order.
		var text string
		err := db.QueryRowContext(ctx, `
			SELECT number FROM block
			ORDER BY length(number) DESC, number DESC
			LIMIT 1
		`).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query latest block: %w", err)
		}
		latest, err = uint256.FromDecimal(text)
		if err != nil {
			return newError(CodeSerialization, op, fmt.Errorf("parse block number %q: %w", text, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// GetAccount returns the account stored for the address.
// Returns nil and no error if the account does not exist.
func (s *Store) GetAccount(ctx context.Context, address common.Address) (*primitives.AccountInfo, error) {
	const op = "get account"
	key := primitives.AddressKey(address)

	var info *primitives.AccountInfo
	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		var err error
		info, err = queryAccount(ctx, db, op, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("account lookup", "address", key, "found", info != nil)
	return info, nil
}

// queryAccount reads one account row. Returns nil if absent.
func queryAccount(ctx context.Context, q rowQueryer, op, key string) (*primitives.AccountInfo, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM account WHERE address = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account %s: %w", key, err)
	}
	info, err := unmarshalAccount(data)
	if err != nil {
		return nil, newError(CodeSerialization, op, err)
	}
	return info, nil
}

// GetBytecode returns the code stored under hash.
// found is false when no code is stored for the hash.
func (s *Store) GetBytecode(ctx context.Context, hash common.Hash) (code primitives.Bytecode, found bool, err error) {
	const op = "get bytecode"
	key := primitives.HashKey(hash)

	err = s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		var data string
		err := db.QueryRowContext(ctx, `SELECT data FROM bytecode WHERE hash = ?`, key).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query bytecode %s: %w", key, err)
		}
		code, err = primitives.ParseBytecode(data)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return code, found, nil
}

// GetStorage returns the value of a storage slot.
// Returns nil and no error if the slot is not stored.
func (s *Store) GetStorage(ctx context.Context, address common.Address, slot *uint256.Int) (*uint256.Int, error) {
	const op = "get storage"
	addrKey := primitives.AddressKey(address)
	slotKey := primitives.HashKey(primitives.SlotHash(slot))

	var value *uint256.Int
	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		var text string
		err := db.QueryRowContext(ctx, `
			SELECT value FROM storage WHERE address = ? AND slot = ?
		`, addrKey, slotKey).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query storage %s/%s: %w", addrKey, slotKey, err)
		}
		value, err = parseWord(text)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Stats holds row counts per table.
type Stats struct {
	Blocks    int64 `json:"blocks"`
	Accounts  int64 `json:"accounts"`
	Bytecodes int64 `json:"bytecodes"`
	Slots     int64 `json:"storage_slots"`
}

// Stats counts the rows of every table in one consistent read.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	const op = "stats"

	var stats Stats
	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM block),
				(SELECT COUNT(*) FROM account),
				(SELECT COUNT(*) FROM bytecode),
				(SELECT COUNT(*) FROM storage)
		`).Scan(&stats.Blocks, &stats.Accounts, &stats.Bytecodes, &stats.Slots)
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
