package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"golang.org/x/text/message"
)

// BlockResult is the output of the block command.
type BlockResult struct {
	Number       string           `json:"number"`
	Hash         common.Hash      `json:"hash"`
	ParentHash   common.Hash      `json:"parent_hash"`
	Timestamp    uint64           `json:"timestamp"`
	Transactions int              `json:"transactions"`
	Senders      []common.Address `json:"senders"`
}

func (r BlockResult) renderText(w io.Writer, p *message.Printer) {
	p.Fprintf(w, "Block %s\n", r.Number)
	p.Fprintf(w, "  hash:         %s\n", r.Hash.Hex())
	p.Fprintf(w, "  parent:       %s\n", r.ParentHash.Hex())
	p.Fprintf(w, "  timestamp:    %d\n", r.Timestamp)
	p.Fprintf(w, "  transactions: %d\n", r.Transactions)
}

// AccountResult is the output of the account command.
type AccountResult struct {
	Address  common.Address `json:"address"`
	Balance  string         `json:"balance"`
	Nonce    uint64         `json:"nonce"`
	CodeHash common.Hash    `json:"code_hash"`
}

func (r AccountResult) renderText(w io.Writer, p *message.Printer) {
	p.Fprintf(w, "Account %s\n", r.Address.Hex())
	p.Fprintf(w, "  balance:   %s wei\n", r.Balance)
	p.Fprintf(w, "  nonce:     %d\n", r.Nonce)
	p.Fprintf(w, "  code hash: %s\n", r.CodeHash.Hex())
}

// NewBlockCommand creates the block command.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "block <number>",
		Short: "Show a stored block",
		Long: `Look up a block by number in the store.

Exit codes:
  0 - Block found
  1 - Block not stored
  2 - Command error

Example:
  exexdb block 17000000 --db ./exex.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := uint256.FromDecimal(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid block number", err)
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			block, err := e.store.GetBlock(cmd.Context(), number)
			if err != nil {
				return e.lookupFailed("get block", err)
			}
			if block == nil {
				msg := fmt.Sprintf("block %s not found", number.Dec())
				if err := e.formatter.Error("E_NOT_FOUND", msg, nil); err != nil {
					return err
				}
				return NewExitError(ExitFailure, msg)
			}

			return e.formatter.Success(BlockResult{
				Number:       number.Dec(),
				Hash:         block.Hash,
				ParentHash:   block.Header.ParentHash,
				Timestamp:    block.Header.Time,
				Transactions: len(block.Transactions),
				Senders:      block.Senders,
			})
		},
	}
}

// NewAccountCommand creates the account command.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "Show an account through the state backend",
		Long: `Read an account the way the EVM does (basic). A missing account is
reported as not found.

Example:
  exexdb account 0x8ba1f109551bD432803012645Ac136ddd64DBA72 --db ./exex.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid address %q", args[0]))
			}
			address := common.HexToAddress(args[0])

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			info, err := e.backend.Basic(address)
			if err != nil {
				return e.lookupFailed("basic", err)
			}
			if info == nil {
				msg := fmt.Sprintf("account %s not found", address.Hex())
				if err := e.formatter.Error("E_NOT_FOUND", msg, nil); err != nil {
					return err
				}
				return NewExitError(ExitFailure, msg)
			}

			return e.formatter.Success(AccountResult{
				Address:  address,
				Balance:  info.Balance.Dec(),
				Nonce:    info.Nonce,
				CodeHash: info.CodeHash,
			})
		},
	}
}

// NewCodeCommand creates the code command.
func NewCodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "code <hash>",
		Short: "Show bytecode by hash through the state backend",
		Long: `Read bytecode the way the EVM does (code_by_hash). Unknown hashes
print empty code (0x).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseHashArg(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid hash", err)
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			code, err := e.backend.CodeByHash(hash)
			if err != nil {
				return e.lookupFailed("code by hash", err)
			}
			if e.formatter.Format == "json" {
				return e.formatter.Success(map[string]any{"hash": hash, "code": code.String(), "size": len(code)})
			}
			return e.formatter.Success(code.String())
		},
	}
}

// NewStorageCommand creates the storage command.
func NewStorageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "storage <address> <slot>",
		Short: "Show a storage slot through the state backend",
		Long: `Read a storage slot the way the EVM does. Unset slots are zero.
The slot accepts decimal or 0x-prefixed hex.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid address %q", args[0]))
			}
			address := common.HexToAddress(args[0])
			slot, err := parseSlotArg(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid slot", err)
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			value, err := e.backend.Storage(address, slot)
			if err != nil {
				return e.lookupFailed("storage", err)
			}
			if e.formatter.Format == "json" {
				return e.formatter.Success(map[string]any{"address": address, "slot": slot.Hex(), "value": value.Dec()})
			}
			return e.formatter.Success(value.Dec())
		},
	}
}

// NewBlockHashCommand creates the block-hash command.
func NewBlockHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "block-hash <number>",
		Short: "Show a block hash through the state backend",
		Long: `Read a block hash the way the EVM does. A number with no stored hash
is a lookup inconsistency and exits with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid block number", err)
			}

			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			hash, err := e.backend.BlockHash(number)
			if err != nil {
				return e.lookupFailed("block hash", err)
			}
			if e.formatter.Format == "json" {
				return e.formatter.Success(map[string]any{"number": number, "hash": hash})
			}
			return e.formatter.Success(hash.Hex())
		},
	}
}

func parseHashArg(text string) (common.Hash, error) {
	b, err := hexutil.Decode(text)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("want %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func parseSlotArg(text string) (*uint256.Int, error) {
	if len(text) > 2 && text[:2] == "0x" {
		return uint256.FromHex(text)
	}
	return uint256.FromDecimal(text)
}
