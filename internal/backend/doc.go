// Package backend adapts the state store to the read contract an EVM
// execution engine consumes while interpreting transactions.
//
// The four reads treat a missing row differently:
//
//	Basic       absent account      -> nil, no error
//	CodeByHash  absent code         -> empty bytecode
//	Storage     absent slot         -> zero
//	BlockHash   absent block hash   -> LOOKUP_INCONSISTENCY error
//
// PolicyFor holds this table and every read resolves its misses through it.
//
// The engine bounds block numbers before asking for a hash, so a missing
// hash means the store is out of sync with the chain it is serving.
package backend
