package primitives

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EmptyCodeHash is the keccak256 digest of empty bytecode.
var EmptyCodeHash = types.EmptyCodeHash

// Bytecode is raw, unanalysed contract code.
// The zero value is empty code, which is what an execution engine expects
// for hashes that have no code attached.
type Bytecode []byte

// Hash returns the keccak256 digest of the code.
func (b Bytecode) Hash() common.Hash {
	if len(b) == 0 {
		return EmptyCodeHash
	}
	return crypto.Keccak256Hash(b)
}

// IsEmpty reports whether the code has no bytes.
func (b Bytecode) IsEmpty() bool {
	return len(b) == 0
}

// String returns the 0x-prefixed hex form used in the bytecode table.
func (b Bytecode) String() string {
	return hexutil.Encode(b)
}

// ParseBytecode decodes hex text into bytecode. The 0x prefix is optional,
// matching what external writers of the bytecode table produce.
func ParseBytecode(text string) (Bytecode, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		text = "0x" + text
	}
	code, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("parse bytecode: %w", err)
	}
	return Bytecode(code), nil
}
