// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package collect

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// SimOptions configures a simulated collector.
type SimOptions struct {
	Kind          measurement.Kind
	Variant       measurement.Variant
	RateHz        float64 // sample rate, defaults to 50 Hz
	QueueCap      int
	OffsetEnabled bool
}

// Sim is a simulated collector producing smooth synthetic signals for the
// configured channel. It stands in for real hardware in demos and tests.
type Sim struct {
	opts SimOptions
	p    *pump

	mu   sync.Mutex
	quit chan struct{}
}

func NewSim(opts SimOptions) *Sim {
	if opts.RateHz <= 0 {
		opts.RateHz = 50
	}
	return &Sim{
		opts: opts,
		p:    newPump(opts.QueueCap, opts.OffsetEnabled),
	}
}

func (s *Sim) Kind() measurement.Kind { return s.opts.Kind }
func (s *Sim) Available() bool        { return true }

func (s *Sim) SetHandler(h Handler) { s.p.setHandler(h) }

func (s *Sim) Usage() float64 { return s.p.usage() }

func (s *Sim) StartOffset() (int64, bool) { return s.p.offsetValue() }

func (s *Sim) Start(referenceTimestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return nil
	}
	s.p.start(referenceTimestamp)
	s.quit = make(chan struct{})
	go s.run(s.quit)
	return nil
}

func (s *Sim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit == nil {
		return
	}
	close(s.quit)
	s.quit = nil
	s.p.stop()
}

func (s *Sim) run(quit chan struct{}) {
	interval := time.Duration(float64(time.Second) / s.opts.RateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C:
			s.p.offer(s.sample(now.Sub(start).Seconds(), now.UnixNano()))
		}
	}
}

// sample synthesizes one measurement at elapsed seconds t.
func (s *Sim) sample(t float64, ts int64) *measurement.Measurement {
	m := &measurement.Measurement{
		Kind:      s.opts.Kind,
		Variant:   s.opts.Variant,
		Timestamp: ts,
		Accuracy:  measurement.AccuracyHigh,
	}

	switch s.opts.Kind {
	case measurement.Accelerometer:
		m.X = 0.3 * math.Sin(2*math.Pi*0.5*t)
		m.Y = 0.3 * math.Cos(2*math.Pi*0.5*t)
		m.Z = 9.81 + 0.05*math.Sin(2*math.Pi*2*t)
	case measurement.Gravity:
		m.Z = 9.81
	case measurement.Gyroscope:
		m.X = 0.1 * math.Sin(2*math.Pi*0.2*t)
		m.Y = 0.1 * math.Cos(2*math.Pi*0.2*t)
		m.Z = 0.02
	case measurement.Attitude:
		// Slow rotation about the vertical axis.
		yaw := 0.1 * t
		m.W = math.Cos(yaw / 2)
		m.Z = math.Sin(yaw / 2)
	case measurement.Magnetometer:
		m.X = 22 * math.Cos(0.1*t)
		m.Y = 22 * math.Sin(0.1*t)
		m.Z = -43
	}

	if s.opts.Variant == measurement.Uncalibrated {
		m.BiasX, m.BiasY, m.BiasZ = 0.01, -0.02, 0.005
		m.HasBias = true
	}
	return m
}
