package testutil

import "sync"

// DeterministicClock stamps recorded exchanges with predictable sequence
// numbers. It implements ncp.Sequencer.
//
// Two runs against equal devices with fresh (or Reset) clocks record the
// same seq for the same request, so their exchange hashes match.
type DeterministicClock struct {
	mu   sync.Mutex
	seq  int64
	seen []int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.seen = append(c.seen, c.seq)
	return c.seq
}

// Current returns the last number handed out, 0 before the first Next.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns every number handed out since creation or Reset, in
// order.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.seen...)
}

// Reset starts the sequence over.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.seen = nil
}
