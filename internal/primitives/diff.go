package primitives

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateDiff is the plain-state outcome of executing one block.
//
// A nil entry in Accounts marks the account as removed. Storage holds the
// new value of every written slot, keyed by the slot's 32-byte form; a zero
// value clears the slot. Contracts holds code deployed by the block.
// Reverts describe how to undo the block and are carried for callers that
// keep history; the store only persists plain state.
type StateDiff struct {
	Accounts  map[common.Address]*AccountInfo
	Storage   map[common.Address]map[common.Hash]*uint256.Int
	Contracts map[common.Hash]Bytecode
	Reverts   map[common.Address]AccountRevert
}

// AccountRevert is the pre-block state of one address.
//
// When AccountChanged is false only storage was touched. Otherwise Account
// holds the previous account, nil if the address did not exist.
type AccountRevert struct {
	AccountChanged bool
	Account        *AccountInfo
	Storage        []StorageEntry
}

// StorageEntry is a single storage slot and its value.
type StorageEntry struct {
	Slot  common.Hash
	Value *uint256.Int
}

// AccountChange is one account write in a diff. Info is nil for removals.
type AccountChange struct {
	Address common.Address
	Info    *AccountInfo
}

// Removed reports whether the change deletes the account.
func (c AccountChange) Removed() bool {
	return c.Info == nil
}

// StorageChange is one storage slot write in a diff.
type StorageChange struct {
	Address common.Address
	Slot    common.Hash
	Value   *uint256.Int
}

// NewStateDiff creates an empty diff.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		Accounts:  make(map[common.Address]*AccountInfo),
		Storage:   make(map[common.Address]map[common.Hash]*uint256.Int),
		Contracts: make(map[common.Hash]Bytecode),
		Reverts:   make(map[common.Address]AccountRevert),
	}
}

// UpdateAccount records the post-block state of an address.
func (d *StateDiff) UpdateAccount(address common.Address, info *AccountInfo) *StateDiff {
	if d.Accounts == nil {
		d.Accounts = make(map[common.Address]*AccountInfo)
	}
	if info == nil {
		info = DefaultAccountInfo()
	}
	d.Accounts[address] = info
	return d
}

// RemoveAccount records that an address was destroyed by the block.
func (d *StateDiff) RemoveAccount(address common.Address) *StateDiff {
	if d.Accounts == nil {
		d.Accounts = make(map[common.Address]*AccountInfo)
	}
	d.Accounts[address] = nil
	return d
}

// SetStorage records the post-block value of a storage slot.
func (d *StateDiff) SetStorage(address common.Address, slot, value *uint256.Int) *StateDiff {
	if d.Storage == nil {
		d.Storage = make(map[common.Address]map[common.Hash]*uint256.Int)
	}
	slots, ok := d.Storage[address]
	if !ok {
		slots = make(map[common.Hash]*uint256.Int)
		d.Storage[address] = slots
	}
	if value == nil {
		value = new(uint256.Int)
	}
	slots[SlotHash(slot)] = value
	return d
}

// AddContract records code deployed by the block and returns its hash.
func (d *StateDiff) AddContract(code Bytecode) common.Hash {
	if d.Contracts == nil {
		d.Contracts = make(map[common.Hash]Bytecode)
	}
	hash := code.Hash()
	d.Contracts[hash] = code
	return hash
}

// SortedAccounts returns the account changes ordered by address.
func (d *StateDiff) SortedAccounts() []AccountChange {
	if d == nil {
		return nil
	}
	changes := make([]AccountChange, 0, len(d.Accounts))
	for address, info := range d.Accounts {
		changes = append(changes, AccountChange{Address: address, Info: info})
	}
	sort.Slice(changes, func(i, j int) bool {
		return bytes.Compare(changes[i].Address[:], changes[j].Address[:]) < 0
	})
	return changes
}

// SortedStorage returns the storage changes ordered by address, then slot.
// Slots of accounts removed in the same diff are skipped.
func (d *StateDiff) SortedStorage() []StorageChange {
	if d == nil {
		return nil
	}
	var changes []StorageChange
	for address, slots := range d.Storage {
		if info, ok := d.Accounts[address]; ok && info == nil {
			continue
		}
		for slot, value := range slots {
			changes = append(changes, StorageChange{Address: address, Slot: slot, Value: value})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if c := bytes.Compare(changes[i].Address[:], changes[j].Address[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(changes[i].Slot[:], changes[j].Slot[:]) < 0
	})
	return changes
}

// SortedContracts returns the deployed code hashes in ascending order.
func (d *StateDiff) SortedContracts() []common.Hash {
	if d == nil {
		return nil
	}
	hashes := make([]common.Hash, 0, len(d.Contracts))
	for hash := range d.Contracts {
		hashes = append(hashes, hash)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}

// Len returns the number of account changes in the diff.
func (d *StateDiff) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Accounts)
}
