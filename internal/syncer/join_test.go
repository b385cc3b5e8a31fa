package syncer

import (
	"testing"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

func queueOf(timestamps ...int64) []*measurement.Measurement {
	q := make([]*measurement.Measurement, len(timestamps))
	for i, ts := range timestamps {
		q[i] = &measurement.Measurement{Kind: measurement.Magnetometer, Timestamp: ts}
	}
	return q
}

func TestSplitAtOrBefore(t *testing.T) {
	cases := []struct {
		name  string
		queue []int64
		t     int64
		want  int
	}{
		{"empty", nil, 100, 0},
		{"all before", []int64{10, 20, 30}, 100, 3},
		{"all after", []int64{110, 120}, 100, 0},
		{"middle", []int64{10, 20, 30, 40}, 25, 2},
		{"tie consumed", []int64{10, 20, 30}, 20, 2},
		{"repeated timestamps", []int64{10, 10, 10, 20}, 10, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := splitAtOrBefore(queueOf(c.queue...), c.t); got != c.want {
				t.Errorf("splitAtOrBefore(%v, %d) = %d, want %d", c.queue, c.t, got, c.want)
			}
		})
	}
}

func TestHoldCandidate(t *testing.T) {
	q := queueOf(10, 20, 30, 40)

	if m := holdCandidate(q, 25); m == nil || m.Timestamp != 20 {
		t.Errorf("holdCandidate(25) = %+v, want ts 20", m)
	}
	if m := holdCandidate(q, 40); m == nil || m.Timestamp != 40 {
		t.Errorf("holdCandidate(40) = %+v, want ts 40 (tie)", m)
	}
	if m := holdCandidate(q, 5); m != nil {
		t.Errorf("holdCandidate(5) = %+v, want nil", m)
	}
	if m := holdCandidate(nil, 5); m != nil {
		t.Errorf("holdCandidate on empty queue = %+v, want nil", m)
	}

	// The call itself never mutates the queue.
	if len(q) != 4 {
		t.Errorf("queue length changed to %d", len(q))
	}
}
