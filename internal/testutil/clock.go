package testutil

import "sync"

// DeterministicClock is a resettable logical clock for tests.
// It satisfies the evaluator's SeqSource.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the same scenario can run again with
// identical sequence numbers.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTokens returns the same pass token every time, so traces of a
// scenario are byte-identical across runs.
type FixedTokens struct {
	token string
}

// NewFixedTokens creates a generator for token, or "test-pass" when empty.
func NewFixedTokens(token string) *FixedTokens {
	if token == "" {
		token = "test-pass"
	}
	return &FixedTokens{token: token}
}

func (g *FixedTokens) Generate() string { return g.token }
