package syncer

import "github.com/relabs-tech/inertial_syncer/internal/measurement"

// The join works on raw integer nanosecond timestamps. A tie
// (timestamp == t) counts as "at or before" and is consumed by the
// earlier reference time, never left for a later join.

// splitAtOrBefore returns how many leading entries of queue have a
// timestamp at or before t. queue is ordered oldest first with
// non-decreasing timestamps.
func splitAtOrBefore(queue []*measurement.Measurement, t int64) int {
	n := 0
	for n < len(queue) && queue[n].Timestamp <= t {
		n++
	}
	return n
}

// holdCandidate returns the newest entry of queue with timestamp at or
// before t, or nil when none qualifies. This is the channel's
// sample-and-hold value for reference time t.
func holdCandidate(queue []*measurement.Measurement, t int64) *measurement.Measurement {
	n := splitAtOrBefore(queue, t)
	if n == 0 {
		return nil
	}
	return queue[n-1]
}
