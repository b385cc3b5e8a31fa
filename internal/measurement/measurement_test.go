package measurement

import "testing"

func TestCopyIsIndependent(t *testing.T) {
	src := &Measurement{
		Kind:      Gyroscope,
		Variant:   Uncalibrated,
		X:         0.1,
		Y:         -0.2,
		Z:         0.3,
		BiasX:     0.01,
		BiasY:     0.02,
		BiasZ:     0.03,
		HasBias:   true,
		Timestamp: 12345,
		Accuracy:  AccuracyHigh,
	}

	c := src.Copy()
	if *c != *src {
		t.Fatalf("copy differs from source: %+v vs %+v", c, src)
	}

	c.X = 99
	c.Timestamp = 777
	if src.X != 0.1 || src.Timestamp != 12345 {
		t.Errorf("mutating the copy altered the source: %+v", src)
	}
}

func TestCopyFromLeavesSourceUnmodified(t *testing.T) {
	src := &Measurement{Kind: Accelerometer, X: 1, Y: 2, Z: 3, Timestamp: 100}
	dst := &Measurement{Kind: Magnetometer, X: 9, Timestamp: 5}

	dst.CopyFrom(src)
	if *dst != *src {
		t.Fatalf("CopyFrom mismatch: %+v vs %+v", dst, src)
	}

	dst.Y = 42
	if src.Y != 2 {
		t.Errorf("mutating destination altered the source: %+v", src)
	}
}

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{Accelerometer, "accelerometer"},
		{Gravity, "gravity"},
		{Gyroscope, "gyroscope"},
		{Attitude, "attitude"},
		{Magnetometer, "magnetometer"},
		{Kind(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.k, got, c.want)
		}
	}
}

func TestSyncedSlots(t *testing.T) {
	s := &Synced{Timestamp: 10}

	for _, k := range Kinds() {
		if s.Get(k) != nil {
			t.Fatalf("fresh Synced has non-nil slot for %s", k)
		}
	}

	m := &Measurement{Kind: Gravity, Z: -9.81, Timestamp: 9}
	s.Set(Gravity, m)
	if got := s.Get(Gravity); got != m {
		t.Fatalf("Get(Gravity) = %v, want the instance set", got)
	}
	if s.Get(Accelerometer) != nil {
		t.Error("setting one slot leaked into another")
	}

	s.Clear()
	if s.Timestamp != 0 || s.Get(Gravity) != nil {
		t.Errorf("Clear left state behind: %+v", s)
	}
}

func TestSyncedCopyIsDeep(t *testing.T) {
	s := &Synced{Timestamp: 50}
	s.Set(Accelerometer, &Measurement{Kind: Accelerometer, X: 1, Timestamp: 50})
	s.Set(Gyroscope, &Measurement{Kind: Gyroscope, X: 2, Timestamp: 48})

	c := s.Copy()
	if c.Timestamp != 50 {
		t.Fatalf("copy timestamp = %d", c.Timestamp)
	}
	if c.Get(Accelerometer) == s.Get(Accelerometer) {
		t.Error("copy aliases the source's accelerometer slot")
	}
	if c.Get(Gravity) != nil {
		t.Error("copy fabricated an absent slot")
	}

	c.Get(Gyroscope).X = 999
	if s.Get(Gyroscope).X != 2 {
		t.Error("mutating the copy altered the source")
	}
}
