package primitives

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	// ErrMissingHeader is returned when a block has no header.
	ErrMissingHeader = errors.New("block has no header")

	// ErrSenderMismatch is returned when the recovered senders do not line up
	// with the block's transactions.
	ErrSenderMismatch = errors.New("sender count does not match transaction count")

	// ErrHashMismatch is returned when a block's hash is not the hash of its header.
	ErrHashMismatch = errors.New("block hash does not match header")
)

// SealedBlock is a block whose hash has been computed, together with the
// recovered sender of every transaction.
type SealedBlock struct {
	Header       *types.Header        `json:"header"`
	Hash         common.Hash          `json:"hash"`
	Transactions []*types.Transaction `json:"transactions"`
	Senders      []common.Address     `json:"senders"`
}

// NewSealedBlock seals the header and attaches the transactions and their senders.
func NewSealedBlock(header *types.Header, txs []*types.Transaction, senders []common.Address) *SealedBlock {
	block := &SealedBlock{
		Header:       header,
		Transactions: txs,
		Senders:      senders,
	}
	if header != nil {
		block.Hash = header.Hash()
	}
	return block
}

// Number returns the block number as a 256-bit integer.
func (b *SealedBlock) Number() *uint256.Int {
	if b == nil || b.Header == nil || b.Header.Number == nil {
		return new(uint256.Int)
	}
	// Header numbers never exceed 256 bits, so overflow cannot happen.
	n, _ := uint256.FromBig(b.Header.Number)
	return n
}

// Validate checks the structural invariants of a sealed block.
func (b *SealedBlock) Validate() error {
	if b == nil || b.Header == nil {
		return ErrMissingHeader
	}
	if b.Header.Number == nil || b.Header.Number.Sign() < 0 {
		return fmt.Errorf("invalid block number %v", b.Header.Number)
	}
	if want := b.Header.Hash(); b.Hash != want {
		return fmt.Errorf("%w: have %s, want %s", ErrHashMismatch, b.Hash, want)
	}
	if len(b.Senders) != len(b.Transactions) {
		return fmt.Errorf("%w: %d senders, %d transactions",
			ErrSenderMismatch, len(b.Senders), len(b.Transactions))
	}
	return nil
}
