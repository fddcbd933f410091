package reconciler

import "sync/atomic"

// Sequence hands out surrogate ids. Ids must be strictly increasing and
// never repeat.
type Sequence interface {
	Next() int64
}

// Counter is an in-memory Sequence.
type Counter struct {
	last atomic.Int64
}

// NewCounter returns a Counter whose first id is after+1.
func NewCounter(after int64) *Counter {
	c := &Counter{}
	c.last.Store(after)
	return c
}

// Next returns the next id.
func (c *Counter) Next() int64 {
	return c.last.Add(1)
}

// Last returns the most recently issued id.
func (c *Counter) Last() int64 {
	return c.last.Load()
}

// Observe moves the counter past id if needed.
func (c *Counter) Observe(id int64) {
	for {
		cur := c.last.Load()
		if id <= cur || c.last.CompareAndSwap(cur, id) {
			return
		}
	}
}
