package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/keth/internal/backend"
	"github.com/tcoratger/keth/internal/primitives"
	"github.com/tcoratger/keth/internal/store"
	"github.com/tcoratger/keth/internal/testutil"
)

// Harness holds the state of one scenario run.
type Harness struct {
	store   *store.Store
	backend *backend.Backend
	logger  *slog.Logger

	// committed maps block numbers to the hash of the block stored there.
	committed map[uint64]common.Hash
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger routes store and backend logs to logger. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// Run executes a scenario against a fresh in-memory store.
//
// Execution flow:
//  1. Seed bytecode and accounts
//  2. Commit each block with its diff, checking expect_error
//  3. Evaluate assertions through the backend
//
// Failed expectations are collected in the result. An error is returned
// only when the run itself cannot proceed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:", store.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	b, err := backend.New(st, 0, backend.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	h := &Harness{
		store:     st,
		backend:   b,
		logger:    o.logger,
		committed: make(map[uint64]common.Hash),
	}

	ctx := context.Background()
	result := NewResult(scenario.Name)

	if err := h.seed(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to seed state: %w", err)
	}

	for _, step := range scenario.Blocks {
		if err := h.commit(ctx, step, result); err != nil {
			return nil, fmt.Errorf("block %d: %w", step.Number, err)
		}
	}

	for i, assertion := range scenario.Assertions {
		if err := h.evaluate(assertion, result); err != nil {
			result.AddError("assertions[%d]: %v", i, err)
		}
	}

	h.logger.Debug("scenario finished",
		"name", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// seed writes bytecode and accounts outside of any block.
func (h *Harness) seed(ctx context.Context, scenario *Scenario, result *Result) error {
	for _, text := range scenario.Bytecode {
		code, err := primitives.ParseBytecode(text)
		if err != nil {
			return err
		}
		if _, err := h.store.PutBytecode(ctx, code); err != nil {
			return err
		}
		result.record("seed", "code len=%d", len(code))
	}

	for _, addrText := range sortedKeys(scenario.Accounts) {
		address, err := parseAddress(addrText)
		if err != nil {
			return err
		}
		info, err := scenario.Accounts[addrText].accountInfo()
		if err != nil {
			return err
		}
		err = h.store.UpsertAccount(ctx, address, func(*primitives.AccountInfo) (*primitives.AccountInfo, error) {
			return info, nil
		})
		if err != nil {
			return err
		}
		result.record("seed", "account %s %s", address.Hex(), describeAccount(info))
	}
	return nil
}

// commit builds the block's diff and commits it. Commit failures are
// compared with expect_error rather than returned.
func (h *Harness) commit(ctx context.Context, step BlockStep, result *Result) error {
	diff, err := step.diff()
	if err != nil {
		return err
	}
	block := testutil.Block(step.Number)

	summary := fmt.Sprintf("block %d accounts=%d removed=%d slots=%d contracts=%d",
		step.Number, len(step.Accounts), len(step.Removed), countSlots(step.Storage), len(diff.Contracts))

	err = h.store.CommitBlockWithDiff(ctx, block, diff)
	if err == nil {
		h.committed[step.Number] = block.Hash
		result.record("commit", "%s ok", summary)
		if step.ExpectError != "" {
			result.AddError("block %d: expected error %s, commit succeeded", step.Number, step.ExpectError)
		}
		return nil
	}

	code := errorCode(err)
	result.record("commit", "%s error=%s", summary, code)
	if code != step.ExpectError {
		result.AddError("block %d: unexpected error: %v", step.Number, err)
	}
	return nil
}

func (s AccountSpec) accountInfo() (*primitives.AccountInfo, error) {
	balance, err := parseWord(s.Balance)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	info := primitives.NewAccountInfo(balance, s.Nonce)
	if s.Code != "" {
		code, err := primitives.ParseBytecode(s.Code)
		if err != nil {
			return nil, fmt.Errorf("code: %w", err)
		}
		info.CodeHash = code.Hash()
	}
	return info, nil
}

func (step BlockStep) diff() (*primitives.StateDiff, error) {
	diff := primitives.NewStateDiff()
	for addrText, spec := range step.Accounts {
		address, err := parseAddress(addrText)
		if err != nil {
			return nil, err
		}
		info, err := spec.accountInfo()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addrText, err)
		}
		diff.UpdateAccount(address, info)
	}
	for _, addrText := range step.Removed {
		address, err := parseAddress(addrText)
		if err != nil {
			return nil, err
		}
		diff.RemoveAccount(address)
	}
	for addrText, slots := range step.Storage {
		address, err := parseAddress(addrText)
		if err != nil {
			return nil, err
		}
		for slotText, valueText := range slots {
			slot, err := parseWord(slotText)
			if err != nil {
				return nil, err
			}
			value, err := parseWord(valueText)
			if err != nil {
				return nil, err
			}
			diff.SetStorage(address, slot, value)
		}
	}
	for _, text := range step.Contracts {
		code, err := primitives.ParseBytecode(text)
		if err != nil {
			return nil, err
		}
		diff.AddContract(code)
	}
	return diff, nil
}

func describeAccount(info *primitives.AccountInfo) string {
	return fmt.Sprintf("balance=%s nonce=%d", info.Balance.Dec(), info.Nonce)
}

func errorCode(err error) string {
	if code := store.ErrorCodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}

func countSlots(storage map[string]map[string]string) int {
	n := 0
	for _, slots := range storage {
		n += len(slots)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
