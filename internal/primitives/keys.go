package primitives

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BlockNumberKey returns the row key for a block number.
// A nil number is treated as zero.
func BlockNumberKey(number *uint256.Int) string {
	if number == nil {
		return "0"
	}
	return number.Dec()
}

// BlockHeightKey returns the row key for a block number given as uint64.
// It matches BlockNumberKey for every value that fits in 64 bits.
func BlockHeightKey(number uint64) string {
	return strconv.FormatUint(number, 10)
}

// AddressKey returns the row key for an account address.
func AddressKey(address common.Address) string {
	return address.Hex()
}

// HashKey returns the row key for a 32-byte digest.
func HashKey(hash common.Hash) string {
	return hash.Hex()
}

// SlotHash converts a storage slot index into its 32-byte big-endian form.
func SlotHash(slot *uint256.Int) common.Hash {
	if slot == nil {
		return common.Hash{}
	}
	return common.Hash(slot.Bytes32())
}
