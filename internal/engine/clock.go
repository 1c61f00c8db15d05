package engine

import "sync/atomic"

// Clock is the evaluator's logical clock.
//
// Every evaluation pass and every recorded property mutation is stamped with
// a strictly increasing seq from Next. Wall-clock time never orders events,
// so a replayed log reproduces the same sequence.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used when resuming from a stored log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
