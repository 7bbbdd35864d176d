package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/tcoratger/keth/internal/primitives"
)

// Scenario is one harness run: seed state, commit blocks, check reads.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bytecode is code stored before any block, as an external writer would.
	Bytecode []string `yaml:"bytecode,omitempty"`

	// Accounts are written before any block through UpsertAccount.
	Accounts map[string]AccountSpec `yaml:"accounts,omitempty"`

	// Blocks are committed in order.
	Blocks []BlockStep `yaml:"blocks"`

	// Assertions run after every block is committed.
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSpec describes an account value.
type AccountSpec struct {
	Balance string `yaml:"balance"`
	Nonce   uint64 `yaml:"nonce,omitempty"`
	// Code, when set, points the account's code hash at this code.
	Code string `yaml:"code,omitempty"`
}

// BlockStep is one block commit and its state diff.
type BlockStep struct {
	Number    uint64                       `yaml:"number"`
	Accounts  map[string]AccountSpec       `yaml:"accounts,omitempty"`
	Removed   []string                     `yaml:"removed,omitempty"`
	Storage   map[string]map[string]string `yaml:"storage,omitempty"`
	Contracts []string                     `yaml:"contracts,omitempty"`

	// ExpectError is the store error code the commit must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks one read after all blocks are committed.
type Assertion struct {
	Type string `yaml:"type"`

	Address string  `yaml:"address,omitempty"`
	Number  *uint64 `yaml:"number,omitempty"`
	Slot    string  `yaml:"slot,omitempty"`
	Code    string  `yaml:"code,omitempty"`

	// Absent expects no account (account) or no block (block).
	Absent bool `yaml:"absent,omitempty"`

	Balance string  `yaml:"balance,omitempty"`
	Nonce   *uint64 `yaml:"nonce,omitempty"`
	Value   string  `yaml:"value,omitempty"`

	// Expect is the code returned by a code assertion; empty means no code.
	Expect string `yaml:"expect,omitempty"`

	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion type constants.
const (
	AssertAccount   = "account"
	AssertBlock     = "block"
	AssertCode      = "code"
	AssertStorage   = "storage"
	AssertBlockHash = "block_hash"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that every value parses.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Blocks) == 0 {
		return fmt.Errorf("blocks list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, code := range s.Bytecode {
		if _, err := primitives.ParseBytecode(code); err != nil {
			return fmt.Errorf("bytecode[%d]: %w", i, err)
		}
	}
	for addr, spec := range s.Accounts {
		if err := validateAccount(addr, spec); err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
	}

	for i, step := range s.Blocks {
		for addr, spec := range step.Accounts {
			if err := validateAccount(addr, spec); err != nil {
				return fmt.Errorf("blocks[%d].accounts: %w", i, err)
			}
		}
		for _, addr := range step.Removed {
			if _, err := parseAddress(addr); err != nil {
				return fmt.Errorf("blocks[%d].removed: %w", i, err)
			}
		}
		for addr, slots := range step.Storage {
			if _, err := parseAddress(addr); err != nil {
				return fmt.Errorf("blocks[%d].storage: %w", i, err)
			}
			for slot, value := range slots {
				if _, err := parseWord(slot); err != nil {
					return fmt.Errorf("blocks[%d].storage[%s]: slot: %w", i, addr, err)
				}
				if _, err := parseWord(value); err != nil {
					return fmt.Errorf("blocks[%d].storage[%s][%s]: %w", i, addr, slot, err)
				}
			}
		}
		for j, code := range step.Contracts {
			if _, err := primitives.ParseBytecode(code); err != nil {
				return fmt.Errorf("blocks[%d].contracts[%d]: %w", i, j, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAccount(addr string, spec AccountSpec) error {
	if _, err := parseAddress(addr); err != nil {
		return err
	}
	if _, err := parseWord(spec.Balance); err != nil {
		return fmt.Errorf("%s: balance: %w", addr, err)
	}
	if spec.Code != "" {
		if _, err := primitives.ParseBytecode(spec.Code); err != nil {
			return fmt.Errorf("%s: code: %w", addr, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertAccount:
		if _, err := parseAddress(a.Address); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if !a.Absent && a.Balance == "" {
			return fmt.Errorf("assertions[%d]: balance or absent is required for account", index)
		}
	case AssertBlock, AssertBlockHash:
		if a.Number == nil {
			return fmt.Errorf("assertions[%d]: number is required for %s", index, a.Type)
		}
	case AssertCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for code", index)
		}
	case AssertStorage:
		if _, err := parseAddress(a.Address); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Slot == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: slot and value are required for storage", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parseAddress accepts 0x-prefixed hex of at most 20 bytes, left padded.
func parseAddress(text string) (common.Address, error) {
	digits, ok := strings.CutPrefix(text, "0x")
	if !ok || digits == "" || len(digits) > 2*common.AddressLength || !isHex(digits) {
		return common.Address{}, fmt.Errorf("invalid address %q", text)
	}
	return common.HexToAddress(text), nil
}

// parseWord accepts a decimal or 0x-prefixed hex 256-bit value. Hex may
// carry leading zeros.
func parseWord(text string) (*uint256.Int, error) {
	if text == "" {
		return nil, fmt.Errorf("empty value")
	}
	digits, ok := strings.CutPrefix(text, "0x")
	if !ok {
		return uint256.FromDecimal(text)
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return uint256.FromHex("0x" + digits)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
