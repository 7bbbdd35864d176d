package store

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/tcoratger/keth/internal/primitives"
)

// Payload columns hold JSON TEXT so rows stay human-inspectable and
// readable by other SQLite clients.

// marshalBlock converts a sealed block to JSON TEXT for storage.
func marshalBlock(block *primitives.SealedBlock) (string, error) {
	data, err := json.Marshal(block)
	if err != nil {
		return "", fmt.Errorf("marshal block: %w", err)
	}
	return string(data), nil
}

// unmarshalBlock parses JSON TEXT into a sealed block.
func unmarshalBlock(data string) (*primitives.SealedBlock, error) {
	var block primitives.SealedBlock
	if err := json.Unmarshal([]byte(data), &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// marshalAccount converts account info to JSON TEXT for storage.
func marshalAccount(info *primitives.AccountInfo) (string, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("marshal account: %w", err)
	}
	return string(data), nil
}

// unmarshalAccount parses JSON TEXT into account info.
func unmarshalAccount(data string) (*primitives.AccountInfo, error) {
	var info primitives.AccountInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &info, nil
}

// parseHash parses 0x-hex TEXT into a 32-byte digest, rejecting anything
// that is not exactly 32 bytes.
func parseHash(text string) (common.Hash, error) {
	raw, err := hexutil.Decode(text)
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse hash %q: %w", text, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("parse hash %q: got %d bytes, want %d", text, len(raw), common.HashLength)
	}
	return common.BytesToHash(raw), nil
}

// formatWord converts a 256-bit value to its stored TEXT form.
func formatWord(v *uint256.Int) string {
	if v == nil {
		return "0x0"
	}
	return v.Hex()
}

// parseWord parses stored TEXT (hex or decimal) into a 256-bit value.
func parseWord(text string) (*uint256.Int, error) {
	v := new(uint256.Int)
	if err := v.UnmarshalText([]byte(text)); err != nil {
		return nil, fmt.Errorf("parse word %q: %w", text, err)
	}
	return v, nil
}
