package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_EncodesNumberInLowBytes(t *testing.T) {
	assert.Equal(t, "0x0000000000000000000000000000000000000001", Address(1).Hex())
	assert.Equal(t, "0x0000000000000000000000000000000000000010", Address(16).Hex())
}

func TestBlock_SealsDeterministically(t *testing.T) {
	a := Block(7)
	b := Block(7)

	require.NoError(t, a.Validate())
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, uint64(7), a.Number().Uint64())
	assert.NotEqual(t, a.Hash, Block(8).Hash)
}

func TestSignedBlock_IsValidAndDeterministic(t *testing.T) {
	block := SignedBlock(3)

	require.NoError(t, block.Validate())
	require.Len(t, block.Transactions, 2)
	assert.Equal(t, block.Hash, SignedBlock(3).Hash)
	assert.NotEqual(t, Block(3).Hash, block.Hash)
}
