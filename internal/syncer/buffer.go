package syncer

import (
	"sync"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// channelState is the per-channel half of the synchronizer's state: a
// capacity-bounded FIFO of pending measurements plus the bookkeeping the
// join needs (seen flag, last-notified watermark, held sample-and-hold
// value, and the found scratch holding the prefix consumed by the last
// join scan).
//
// The mutex guards buffer mutation against the channel's own delivery
// callback racing a join scan; it is always acquired after the
// synchronizer-wide mutex when both are held.
type channelState struct {
	mu       sync.Mutex
	kind     measurement.Kind
	capacity int

	queue []*measurement.Measurement // pending, oldest first
	found []*measurement.Measurement // prefix consumed by the last join scan

	seen         bool
	lastNotified int64
	held         *measurement.Measurement
}

func newChannelState(kind measurement.Kind, capacity int) *channelState {
	return &channelState{kind: kind, capacity: capacity}
}

func (c *channelState) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *channelState) empty() bool { return c.size() == 0 }

func (c *channelState) full() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) >= c.capacity
}

func (c *channelState) usage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(len(c.queue)) / float64(c.capacity)
}

// append adds m at the newest end and marks the channel seen. The caller
// has already copied m and checked capacity.
func (c *channelState) append(m *measurement.Measurement) {
	c.mu.Lock()
	c.queue = append(c.queue, m)
	c.seen = true
	c.mu.Unlock()
}

// evictOldest drops the oldest pending measurement to make room.
func (c *channelState) evictOldest() *measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	m := c.queue[0]
	c.queue = c.queue[1:]
	return m
}

func (c *channelState) peek() *measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	return c.queue[0]
}

func (c *channelState) popFront() *measurement.Measurement {
	return c.evictOldest()
}

// takeUpTo moves every pending measurement with timestamp at or before t
// into the found scratch and returns the newest of them, the channel's
// sample-and-hold candidate for reference time t. Returns nil when nothing
// qualifies. Entries after t stay queued for future joins.
func (c *channelState) takeUpTo(t int64) *measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := splitAtOrBefore(c.queue, t)
	if n == 0 {
		c.found = c.found[:0]
		return nil
	}
	c.found = append(c.found[:0], c.queue[:n]...)
	c.queue = c.queue[n:]
	return c.found[n-1]
}

// sweepStale removes every pending measurement older than threshold and
// returns them oldest first. Stale entries never reach a join.
func (c *channelState) sweepStale(threshold int64) []*measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for n < len(c.queue) && c.queue[n].Timestamp < threshold {
		n++
	}
	if n == 0 {
		return nil
	}
	stale := c.queue[:n:n]
	c.queue = c.queue[n:]
	return stale
}

// extremes reports the oldest and newest pending timestamps.
func (c *channelState) extremes() (oldest, newest int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return 0, 0, false
	}
	return c.queue[0].Timestamp, c.queue[len(c.queue)-1].Timestamp, true
}

// reset restores the post-construction state.
func (c *channelState) reset() {
	c.mu.Lock()
	c.queue = nil
	c.found = nil
	c.seen = false
	c.lastNotified = 0
	c.held = nil
	c.mu.Unlock()
}
