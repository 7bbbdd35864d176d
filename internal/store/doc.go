// Package store provides SQLite-backed durable storage for processed blocks
// and the plain account state they produce.
//
// The store holds four tables:
//   - block: one row per processed block (append-only), keyed by number
//   - account: plain account state, keyed by address (upsert / delete)
//   - bytecode: contract code keyed by keccak256 hash (content addressed)
//   - storage: plain storage slots keyed by (address, slot)
//
// Payload columns hold JSON TEXT; keys hold the text forms defined in
// package primitives.
//
// # Atomicity
//
// CommitBlockWithDiff writes the block row and every row derived from its
// state diff in one SQL transaction. A failure anywhere rolls back all of it.
//
// # Concurrency
//
// All handles (Open, Clone) share one connection behind one mutex. Every
// operation holds the mutex for its full duration, so operations are
// serialized in program order and no reader sees a partially applied
// commit. Lock acquisition is not cancellable; callers needing bounded
// waits must time out externally.
//
// A panic while the mutex is held (for example inside an UpsertAccount
// update function) poisons the connection: every later operation on any
// handle fails with CodePoisoned.
//
// # Absence
//
// Point lookups report a missing row as a nil result (or found=false), never
// as an error. Mapping absence to engine semantics is the job of package
// backend.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads from other processes during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
