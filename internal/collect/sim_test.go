package collect

import (
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

func TestSimDeliversOrderedMeasurements(t *testing.T) {
	s := NewSim(SimOptions{
		Kind:          measurement.Gyroscope,
		RateHz:        200,
		OffsetEnabled: true,
	})

	var mu sync.Mutex
	var got []*measurement.Measurement
	s.SetHandler(Handler{
		OnMeasurement: func(m *measurement.Measurement) {
			mu.Lock()
			got = append(got, m.Copy())
			mu.Unlock()
		},
	})

	ref := time.Now().UnixNano()
	if err := s.Start(ref); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d measurements delivered before deadline", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Fatalf("timestamps regressed: %d after %d", got[i].Timestamp, got[i-1].Timestamp)
		}
	}
	for _, m := range got {
		if m.Kind != measurement.Gyroscope {
			t.Fatalf("wrong kind delivered: %s", m.Kind)
		}
		if m.Timestamp < ref {
			t.Fatalf("timestamp %d before reference %d", m.Timestamp, ref)
		}
	}

	if off, ok := s.StartOffset(); !ok {
		t.Error("start offset absent after delivery with offset tracking enabled")
	} else if off < 0 {
		t.Errorf("negative start offset %d", off)
	}
}

func TestSimStopResetsOffset(t *testing.T) {
	s := NewSim(SimOptions{Kind: measurement.Accelerometer, RateHz: 500, OffsetEnabled: true})
	done := make(chan struct{})
	var once sync.Once
	s.SetHandler(Handler{
		OnMeasurement: func(*measurement.Measurement) { once.Do(func() { close(done) }) },
	})

	if err := s.Start(time.Now().UnixNano()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no measurement delivered")
	}
	s.Stop()

	if _, ok := s.StartOffset(); ok {
		t.Error("start offset still present after Stop")
	}
}

func TestSimUncalibratedCarriesBias(t *testing.T) {
	s := NewSim(SimOptions{Kind: measurement.Magnetometer, Variant: measurement.Uncalibrated})
	m := s.sample(0.5, 42)
	if !m.HasBias {
		t.Fatal("uncalibrated sample missing bias")
	}
	if m.Variant != measurement.Uncalibrated {
		t.Fatalf("variant = %s", m.Variant)
	}

	cal := NewSim(SimOptions{Kind: measurement.Magnetometer})
	if cm := cal.sample(0.5, 42); cm.HasBias {
		t.Fatal("calibrated sample reports a bias")
	}
}

func TestHeadingQuaternion(t *testing.T) {
	m := headingMeasurement(0, measurement.AccuracyHigh, 7)
	if m.W != 1 || m.Z != 0 {
		t.Errorf("north heading quaternion = (w=%v, z=%v), want identity", m.W, m.Z)
	}
	if m.Kind != measurement.Attitude || m.Timestamp != 7 {
		t.Errorf("unexpected measurement: %+v", m)
	}

	m = headingMeasurement(180, measurement.AccuracyMedium, 8)
	if m.Z < 0.999 {
		t.Errorf("south heading z = %v, want ~1", m.Z)
	}
}
