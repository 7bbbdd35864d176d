package testutil

import "sync"

// DefaultGenesisTime is the timestamp of block zero in test chains.
const DefaultGenesisTime uint64 = 1_700_000_000

// DefaultBlockInterval is the number of seconds between test blocks.
const DefaultBlockInterval uint64 = 12

// BlockClock hands out deterministic block timestamps.
//
// Timestamps depend only on the block number, so a fixture built twice
// seals to the same hash. Safe for concurrent use.
type BlockClock struct {
	mu       sync.Mutex
	genesis  uint64
	interval uint64
	last     uint64
}

// NewBlockClock creates a clock with the default genesis time and interval.
func NewBlockClock() *BlockClock {
	return &BlockClock{genesis: DefaultGenesisTime, interval: DefaultBlockInterval}
}

// Timestamp returns the timestamp for the given block number and records it
// as the latest one handed out.
func (c *BlockClock) Timestamp(number uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.genesis + number*c.interval
	if ts > c.last {
		c.last = ts
	}
	return ts
}

// Latest returns the largest timestamp handed out so far, or zero.
func (c *BlockClock) Latest() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
