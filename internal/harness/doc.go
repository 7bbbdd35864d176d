// Package harness runs YAML scenarios against a fresh state store and
// compares the resulting trace with a golden file.
//
// # Scenario Format
//
//	name: transfer_and_remove
//	description: "Commit one block that updates one account and removes another"
//	bytecode:
//	  - "0x6001"
//	accounts:
//	  "0x02": { balance: "5" }
//	blocks:
//	  - number: 1
//	    accounts:
//	      "0x01": { balance: "10", nonce: 1 }
//	    removed: ["0x02"]
//	    storage:
//	      "0x01": { "0x00": "7" }
//	    contracts: ["0x6002"]
//	  - number: 1
//	    expect_error: TRANSACTION
//	assertions:
//	  - type: account
//	    address: "0x01"
//	    balance: "10"
//	  - type: account
//	    address: "0x02"
//	    absent: true
//	  - type: block_hash
//	    number: 2
//	    expect_error: LOOKUP_INCONSISTENCY
//
// Addresses may be written short; "0x01" is left padded to 20 bytes.
// Balances, slots and values accept decimal or 0x-prefixed hex.
//
// # Assertion Types
//
//   - account: reads through the backend's Basic; checks balance and nonce,
//     or absence
//   - block: reads the store; checks presence or absence
//   - code: reads through CodeByHash using the hash of code; checks the
//     returned code (empty when unknown)
//   - storage: reads through Storage; checks the slot value
//   - block_hash: reads through BlockHash; checks the hash equals the hash
//     of the block committed at that number, or that the read fails with
//     expect_error
//
// # Determinism
//
// Each run uses a private in-memory store. Block headers come from
// testutil.Block, so block hashes are stable across runs. The trace holds no
// hashes, only the observations made while seeding, committing and asserting.
package harness
