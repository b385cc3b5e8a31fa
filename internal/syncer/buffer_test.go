package syncer

import (
	"testing"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

func gyroAt(ts int64) *measurement.Measurement {
	return &measurement.Measurement{Kind: measurement.Gyroscope, Timestamp: ts}
}

func TestChannelStateCapacityAndUsage(t *testing.T) {
	c := newChannelState(measurement.Gravity, 4)

	if c.full() || !c.empty() {
		t.Fatal("fresh channel state not empty")
	}
	if got := c.usage(); got != 0 {
		t.Fatalf("usage = %v, want 0", got)
	}

	c.append(gyroAt(1))
	if got := c.usage(); got != 0.25 {
		t.Errorf("usage = %v, want 0.25", got)
	}
	if !c.seen {
		t.Error("seen flag not set by first append")
	}

	for _, ts := range []int64{2, 3, 4} {
		c.append(gyroAt(ts))
	}
	if !c.full() {
		t.Error("not full at capacity")
	}
	if got := c.usage(); got != 1.0 {
		t.Errorf("usage = %v, want 1.0", got)
	}
}

func TestChannelStateEvictOldest(t *testing.T) {
	c := newChannelState(measurement.Gyroscope, 2)
	c.append(gyroAt(10))
	c.append(gyroAt(20))

	m := c.evictOldest()
	if m == nil || m.Timestamp != 10 {
		t.Fatalf("evicted %+v, want ts 10", m)
	}
	if got := c.size(); got != 1 {
		t.Fatalf("size = %d after eviction", got)
	}
}

func TestChannelStateTakeUpTo(t *testing.T) {
	c := newChannelState(measurement.Gyroscope, 8)
	for _, ts := range []int64{10, 20, 30, 40} {
		c.append(gyroAt(ts))
	}

	cand := c.takeUpTo(25)
	if cand == nil || cand.Timestamp != 20 {
		t.Fatalf("candidate = %+v, want ts 20", cand)
	}
	if got := c.size(); got != 2 {
		t.Errorf("size = %d, want 2 (entries after 25 stay queued)", got)
	}
	if len(c.found) != 2 {
		t.Errorf("found scratch holds %d, want 2", len(c.found))
	}

	// Nothing at or before 5 remains.
	if cand := c.takeUpTo(5); cand != nil {
		t.Errorf("candidate = %+v, want nil", cand)
	}
	if len(c.found) != 0 {
		t.Errorf("found scratch not cleared on empty scan: %d", len(c.found))
	}

	// Tie consumed.
	if cand := c.takeUpTo(30); cand == nil || cand.Timestamp != 30 {
		t.Errorf("candidate at tie = %+v, want ts 30", cand)
	}
}

func TestChannelStateSweepStale(t *testing.T) {
	c := newChannelState(measurement.Gyroscope, 8)
	for _, ts := range []int64{10, 20, 30, 40} {
		c.append(gyroAt(ts))
	}

	stale := c.sweepStale(30)
	if len(stale) != 2 {
		t.Fatalf("swept %d, want 2", len(stale))
	}
	if stale[0].Timestamp != 10 || stale[1].Timestamp != 20 {
		t.Errorf("swept %v, want ts 10 then 20", stale)
	}
	// Threshold is exclusive: ts 30 survives.
	if got := c.size(); got != 2 {
		t.Errorf("size = %d, want 2", got)
	}

	if again := c.sweepStale(30); again != nil {
		t.Errorf("second sweep returned %v", again)
	}
}

func TestChannelStateExtremes(t *testing.T) {
	c := newChannelState(measurement.Gyroscope, 8)
	if _, _, ok := c.extremes(); ok {
		t.Fatal("extremes present on empty buffer")
	}

	c.append(gyroAt(10))
	c.append(gyroAt(40))
	lo, hi, ok := c.extremes()
	if !ok || lo != 10 || hi != 40 {
		t.Errorf("extremes = %d..%d/%v, want 10..40", lo, hi, ok)
	}
}

func TestChannelStateReset(t *testing.T) {
	c := newChannelState(measurement.Gyroscope, 8)
	c.append(gyroAt(10))
	c.takeUpTo(10)
	c.lastNotified = 10
	c.held = gyroAt(10)

	c.reset()

	if c.size() != 0 || c.seen || c.lastNotified != 0 || c.held != nil || len(c.found) != 0 {
		t.Errorf("reset left state behind: %+v", c)
	}
}
