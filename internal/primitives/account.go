package primitives

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// AccountInfo is the account-level state of a single address.
//
// Code is optional: accounts normally carry only CodeHash and the code is
// resolved through the bytecode table.
type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     Bytecode
}

// NewAccountInfo returns an account with the given balance and nonce and no code.
func NewAccountInfo(balance *uint256.Int, nonce uint64) *AccountInfo {
	if balance == nil {
		balance = new(uint256.Int)
	}
	return &AccountInfo{
		Balance:  balance,
		Nonce:    nonce,
		CodeHash: EmptyCodeHash,
	}
}

// DefaultAccountInfo returns the state of a never-seen address.
func DefaultAccountInfo() *AccountInfo {
	return NewAccountInfo(nil, 0)
}

// IsEmpty reports whether the account has zero balance, zero nonce and no code.
func (a *AccountInfo) IsEmpty() bool {
	if a == nil {
		return true
	}
	balanceZero := a.Balance == nil || a.Balance.IsZero()
	noCode := a.CodeHash == EmptyCodeHash || a.CodeHash == (common.Hash{})
	return balanceZero && a.Nonce == 0 && noCode
}

// Copy returns a deep copy of the account.
func (a *AccountInfo) Copy() *AccountInfo {
	if a == nil {
		return nil
	}
	cpy := &AccountInfo{
		Nonce:    a.Nonce,
		CodeHash: a.CodeHash,
	}
	if a.Balance != nil {
		cpy.Balance = a.Balance.Clone()
	}
	if a.Code != nil {
		cpy.Code = append(Bytecode(nil), a.Code...)
	}
	return cpy
}

// Equal reports whether two accounts hold the same state.
func (a *AccountInfo) Equal(other *AccountInfo) bool {
	if a == nil || other == nil {
		return a == other
	}
	return balanceOf(a).Eq(balanceOf(other)) &&
		a.Nonce == other.Nonce &&
		a.CodeHash == other.CodeHash &&
		string(a.Code) == string(other.Code)
}

func balanceOf(a *AccountInfo) *uint256.Int {
	if a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}

// accountInfoJSON is the stored JSON shape. Balance is 0x-hex text so that
// values above 2^53 survive any JSON reader.
type accountInfoJSON struct {
	Balance  string        `json:"balance"`
	Nonce    uint64        `json:"nonce"`
	CodeHash common.Hash   `json:"code_hash"`
	Code     hexutil.Bytes `json:"code,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a AccountInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountInfoJSON{
		Balance:  balanceOf(&a).Hex(),
		Nonce:    a.Nonce,
		CodeHash: a.CodeHash,
		Code:     hexutil.Bytes(a.Code),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// Balance accepts 0x-hex or decimal text.
func (a *AccountInfo) UnmarshalJSON(data []byte) error {
	var enc accountInfoJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	balance := new(uint256.Int)
	if enc.Balance != "" {
		if err := balance.UnmarshalText([]byte(enc.Balance)); err != nil {
			return fmt.Errorf("invalid balance %q: %w", enc.Balance, err)
		}
	}
	a.Balance = balance
	a.Nonce = enc.Nonce
	a.CodeHash = enc.CodeHash
	a.Code = nil
	if len(enc.Code) > 0 {
		a.Code = Bytecode(enc.Code)
	}
	return nil
}
