// Package primitives defines the value types shared by the store and the
// state backend: sealed blocks, account info, bytecode and per-block state
// diffs.
//
// Identifiers reuse the go-ethereum types (common.Address, common.Hash) and
// 256-bit quantities use holiman/uint256. Every type here has a stable JSON
// form, which is what the store persists in its TEXT payload columns.
//
// # Text Keys
//
// Rows are keyed by the text form of their identifier:
//   - Block numbers: decimal (e.g. "1024")
//   - Addresses: EIP-55 checksummed hex
//   - Hashes and storage slots: 0x-prefixed lowercase hex of 32 bytes
//
// Use the *Key helpers so every caller agrees on the encoding.
package primitives
