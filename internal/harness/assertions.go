package harness

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tcoratger/keth/internal/primitives"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluate runs one assertion, recording what was read in the trace.
func (h *Harness) evaluate(a Assertion, result *Result) error {
	switch a.Type {
	case AssertAccount:
		return h.assertAccount(a, result)
	case AssertBlock:
		return h.assertBlock(a, result)
	case AssertCode:
		return h.assertCode(a, result)
	case AssertStorage:
		return h.assertStorage(a, result)
	case AssertBlockHash:
		return h.assertBlockHash(a, result)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertAccount(a Assertion, result *Result) error {
	address, err := parseAddress(a.Address)
	if err != nil {
		return err
	}
	info, err := h.backend.Basic(address)
	if err != nil {
		result.record("read", "basic %s error=%s", address.Hex(), errorCode(err))
		return err
	}
	if info == nil {
		result.record("read", "basic %s none", address.Hex())
		if !a.Absent {
			return &AssertionError{Type: a.Type, Expected: "account " + address.Hex(), Actual: "none"}
		}
		return nil
	}

	result.record("read", "basic %s %s", address.Hex(), describeAccount(info))
	if a.Absent {
		return &AssertionError{Type: a.Type, Expected: "none", Actual: describeAccount(info)}
	}
	balance, err := parseWord(a.Balance)
	if err != nil {
		return err
	}
	if !balance.Eq(info.Balance) {
		return &AssertionError{Type: a.Type, Expected: "balance=" + balance.Dec(), Actual: "balance=" + info.Balance.Dec()}
	}
	if a.Nonce != nil && *a.Nonce != info.Nonce {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("nonce=%d", *a.Nonce),
			Actual:   fmt.Sprintf("nonce=%d", info.Nonce),
		}
	}
	return nil
}

func (h *Harness) assertBlock(a Assertion, result *Result) error {
	number := *a.Number
	block, err := h.store.GetBlock(context.Background(), uint256.NewInt(number))
	if err != nil {
		result.record("read", "block %d error=%s", number, errorCode(err))
		return err
	}

	switch {
	case block == nil:
		result.record("read", "block %d none", number)
		if !a.Absent {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("block %d", number), Actual: "none"}
		}
	case a.Absent:
		result.record("read", "block %d found", number)
		return &AssertionError{Type: a.Type, Expected: "none", Actual: fmt.Sprintf("block %d", number)}
	default:
		result.record("read", "block %d found", number)
		if block.Hash != h.committed[number] {
			return &AssertionError{Type: a.Type, Expected: "hash of committed block", Actual: block.Hash.Hex()}
		}
	}
	return nil
}

func (h *Harness) assertCode(a Assertion, result *Result) error {
	code, err := primitives.ParseBytecode(a.Code)
	if err != nil {
		return err
	}
	want := primitives.Bytecode{}
	if a.Expect != "" {
		if want, err = primitives.ParseBytecode(a.Expect); err != nil {
			return err
		}
	}

	got, err := h.backend.CodeByHash(code.Hash())
	if err != nil {
		result.record("read", "code_by_hash error=%s", errorCode(err))
		return err
	}
	result.record("read", "code_by_hash len=%d", len(got))
	if got.String() != want.String() {
		return &AssertionError{Type: a.Type, Expected: want.String(), Actual: got.String()}
	}
	return nil
}

func (h *Harness) assertStorage(a Assertion, result *Result) error {
	address, err := parseAddress(a.Address)
	if err != nil {
		return err
	}
	slot, err := parseWord(a.Slot)
	if err != nil {
		return err
	}
	want, err := parseWord(a.Value)
	if err != nil {
		return err
	}

	got, err := h.backend.Storage(address, slot)
	if err != nil {
		result.record("read", "storage %s[%s] error=%s", address.Hex(), slot.Hex(), errorCode(err))
		return err
	}
	result.record("read", "storage %s[%s] value=%s", address.Hex(), slot.Hex(), got.Dec())
	if !want.Eq(got) {
		return &AssertionError{Type: a.Type, Expected: want.Dec(), Actual: got.Dec()}
	}
	return nil
}

func (h *Harness) assertBlockHash(a Assertion, result *Result) error {
	number := *a.Number
	hash, err := h.backend.BlockHash(number)
	if err != nil {
		code := errorCode(err)
		result.record("read", "block_hash %d error=%s", number, code)
		if code != a.ExpectError {
			return &AssertionError{Type: a.Type, Expected: expectation(a.ExpectError), Actual: "error " + code}
		}
		return nil
	}

	committed, ok := h.committed[number]
	if ok && hash == committed {
		result.record("read", "block_hash %d matches block", number)
	} else {
		result.record("read", "block_hash %d differs from block", number)
	}
	if a.ExpectError != "" {
		return &AssertionError{Type: a.Type, Expected: "error " + a.ExpectError, Actual: hash.Hex()}
	}
	if !ok || hash != committed {
		return &AssertionError{Type: a.Type, Expected: "hash of committed block", Actual: hash.Hex()}
	}
	return nil
}

func expectation(code string) string {
	if code == "" {
		return "hash of committed block"
	}
	return "error " + code
}
