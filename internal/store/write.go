package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mattn/go-sqlite3"

	"github.com/tcoratger/keth/internal/primitives"
)

const (
	insertBlockSQL = `
		INSERT INTO block (number, hash, data)
		VALUES (?, ?, ?)
	`
	upsertAccountSQL = `
		INSERT INTO account (address, data)
		VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET data = excluded.data
	`
	deleteAccountSQL = `DELETE FROM account WHERE address = ?`

	upsertStorageSQL = `
		INSERT INTO storage (address, slot, value)
		VALUES (?, ?, ?)
		ON CONFLICT(address, slot) DO UPDATE SET value = excluded.value
	`
	deleteStorageSlotSQL = `DELETE FROM storage WHERE address = ? AND slot = ?`
	deleteStorageSQL     = `DELETE FROM storage WHERE address = ?`

	// Bytecode is content addressed: an existing row already holds the same code.
	insertBytecodeSQL = `
		INSERT INTO bytecode (hash, data)
		VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`
)

// CommitBlockWithDiff atomically stores a block and applies its state diff.
//
// In one transaction it inserts the block row keyed by number, then for every
// account in the diff (in address order) either upserts the account or, for
// removals, deletes it together with its storage. Storage slots are then
// written (zero clears the slot) and deployed contract code is inserted.
//
// Any failure (duplicate block number, serialization failure, I/O error)
// rolls back the whole transaction: either every row lands or none does.
// Reverts carried in the diff are not persisted.
func (s *Store) CommitBlockWithDiff(ctx context.Context, block *primitives.SealedBlock, diff *primitives.StateDiff) error {
	const op = "commit block"

	if err := block.Validate(); err != nil {
		return newError(CodeTransaction, op, err)
	}
	if diff == nil {
		diff = primitives.NewStateDiff()
	}

	number := primitives.BlockNumberKey(block.Number())
	accounts := diff.SortedAccounts()
	storage := diff.SortedStorage()
	contracts := diff.SortedContracts()

	err := s.withConn(ctx, op, CodeTransaction, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() // No-op if committed

		blockJSON, err := marshalBlock(block)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		if _, err := tx.ExecContext(ctx, insertBlockSQL, number, primitives.HashKey(block.Hash), blockJSON); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert block %s: %w", number, ErrDuplicateBlock)
			}
			return fmt.Errorf("insert block %s: %w", number, err)
		}

		for _, change := range accounts {
			if err := applyAccountChange(ctx, tx, op, change); err != nil {
				return err
			}
		}

		for _, change := range storage {
			if err := applyStorageChange(ctx, tx, change); err != nil {
				return err
			}
		}

		for _, hash := range contracts {
			code := diff.Contracts[hash]
			if _, err := tx.ExecContext(ctx, insertBytecodeSQL, primitives.HashKey(hash), code.String()); err != nil {
				return fmt.Errorf("insert bytecode %s: %w", hash, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("block commit rolled back",
			"number", number,
			"error", err,
		)
		return err
	}

	s.logger.Info("block committed",
		"number", number,
		"hash", block.Hash.Hex(),
		"accounts", len(accounts),
		"storage_slots", len(storage),
		"contracts", len(contracts),
		"reverts_dropped", len(diff.Reverts),
	)
	return nil
}

// applyAccountChange writes one account change inside a commit transaction.
func applyAccountChange(ctx context.Context, tx *sql.Tx, op string, change primitives.AccountChange) error {
	address := primitives.AddressKey(change.Address)

	if change.Removed() {
		if _, err := tx.ExecContext(ctx, deleteAccountSQL, address); err != nil {
			return fmt.Errorf("delete account %s: %w", address, err)
		}
		if _, err := tx.ExecContext(ctx, deleteStorageSQL, address); err != nil {
			return fmt.Errorf("delete storage of %s: %w", address, err)
		}
		return nil
	}

	accountJSON, err := marshalAccount(change.Info)
	if err != nil {
		return newError(CodeSerialization, op, err)
	}
	if _, err := tx.ExecContext(ctx, upsertAccountSQL, address, accountJSON); err != nil {
		return fmt.Errorf("upsert account %s: %w", address, err)
	}
	return nil
}

// applyStorageChange writes one storage slot inside a commit transaction.
func applyStorageChange(ctx context.Context, tx *sql.Tx, change primitives.StorageChange) error {
	address := primitives.AddressKey(change.Address)
	slot := primitives.HashKey(change.Slot)

	if change.Value == nil || change.Value.IsZero() {
		if _, err := tx.ExecContext(ctx, deleteStorageSlotSQL, address, slot); err != nil {
			return fmt.Errorf("clear storage %s/%s: %w", address, slot, err)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, upsertStorageSQL, address, slot, formatWord(change.Value)); err != nil {
		return fmt.Errorf("write storage %s/%s: %w", address, slot, err)
	}
	return nil
}

// UpdateFunc produces the new value of an account from its current value.
// current is nil when the account does not exist. The function runs while
// the store lock is held, so it must not call back into the store.
type UpdateFunc func(current *primitives.AccountInfo) (*primitives.AccountInfo, error)

// UpsertAccount reads the current account, applies update and writes the
// result back. The read and the write happen under one lock hold and in one
// transaction, so concurrent upserts of the same address never lose updates.
//
// An error from update aborts the upsert and is returned wrapped.
// A panic in update poisons the store.
func (s *Store) UpsertAccount(ctx context.Context, address common.Address, update UpdateFunc) error {
	const op = "upsert account"
	key := primitives.AddressKey(address)

	return s.withConn(ctx, op, CodeTransaction, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		current, err := queryAccount(ctx, tx, op, key)
		if err != nil {
			return err
		}

		next, err := update(current)
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		if next == nil {
			return fmt.Errorf("update %s: %w", key, ErrNilAccount)
		}

		accountJSON, err := marshalAccount(next)
		if err != nil {
			return newError(CodeSerialization, op, err)
		}
		if _, err := tx.ExecContext(ctx, upsertAccountSQL, key, accountJSON); err != nil {
			return fmt.Errorf("upsert account %s: %w", key, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// PutBytecode stores code under its keccak256 hash and returns the hash.
// Storing the same code twice is a no-op.
func (s *Store) PutBytecode(ctx context.Context, code primitives.Bytecode) (common.Hash, error) {
	const op = "put bytecode"
	hash := code.Hash()

	err := s.withConn(ctx, op, CodeIO, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, insertBytecodeSQL, primitives.HashKey(hash), code.String()); err != nil {
			return fmt.Errorf("insert bytecode %s: %w", hash, err)
		}
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
