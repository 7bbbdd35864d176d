// Package testutil holds deterministic fixtures shared by package tests and
// the scenario harness.
package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/tcoratger/keth/internal/primitives"
)

var defaultClock = NewBlockClock()

// Address returns a deterministic address whose low bytes encode n.
// Address(1) is 0x0000000000000000000000000000000000000001.
func Address(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

// Header returns a minimal header for the given block number.
// Every field the JSON codec requires is populated.
func Header(number uint64) *types.Header {
	return &types.Header{
		ParentHash:  common.BigToHash(new(big.Int).SetUint64(number)),
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  new(big.Int),
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    30_000_000,
		Time:        defaultClock.Timestamp(number),
		Extra:       []byte{},
	}
}

// Block returns a sealed block without transactions.
func Block(number uint64) *primitives.SealedBlock {
	return primitives.NewSealedBlock(Header(number), nil, nil)
}

// SignerKey is the private key behind every transaction built by SignedBlock.
const SignerKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// ChainID is the chain the fixture transactions are signed for.
var ChainID = big.NewInt(1)

// SignedBlock returns a sealed block carrying one signed legacy transaction
// and one signed dynamic fee transaction, both sent by the SignerKey account.
// The header's transaction root commits to them.
func SignedBlock(number uint64) *primitives.SealedBlock {
	key, err := crypto.HexToECDSA(SignerKey)
	if err != nil {
		panic(err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(ChainID)
	to := Address(0xbeef)

	legacy, err := types.SignNewTx(key, signer, &types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(params.GWei),
		Gas:      params.TxGas,
		To:       &to,
		Value:    big.NewInt(1),
	})
	if err != nil {
		panic(err)
	}
	dynamic, err := types.SignNewTx(key, signer, &types.DynamicFeeTx{
		ChainID:   ChainID,
		Nonce:     1,
		GasTipCap: big.NewInt(params.GWei),
		GasFeeCap: big.NewInt(2 * params.GWei),
		Gas:       params.TxGas,
		To:        &to,
		Value:     big.NewInt(2),
		Data:      []byte{0x01, 0x02},
	})
	if err != nil {
		panic(err)
	}

	txs := types.Transactions{legacy, dynamic}
	header := Header(number)
	header.TxHash = types.DeriveSha(txs, trie.NewStackTrie(nil))
	return primitives.NewSealedBlock(header, txs, []common.Address{sender, sender})
}

// Account returns an account with the given balance and nonce.
func Account(balance, nonce uint64) *primitives.AccountInfo {
	return primitives.NewAccountInfo(uint256.NewInt(balance), nonce)
}

// Contract returns an account whose code hash points at code.
func Contract(balance uint64, code primitives.Bytecode) *primitives.AccountInfo {
	info := Account(balance, 1)
	info.CodeHash = code.Hash()
	return info
}
