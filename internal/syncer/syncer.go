// Package syncer combines independent, asynchronously delivered sensor
// channels into a single time-ordered stream of synced measurements.
//
// One primary channel drives the output cadence; each emission carries the
// primary measurement plus a sample-and-hold value from every secondary
// channel at the primary's timestamp. Per-channel buffers are capacity
// bounded, stale samples are detected and discarded, and output
// timestamps are strictly increasing with no measurement used twice.
package syncer

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_syncer/internal/collect"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// DefaultStaleOffsetNanos is the freshness window used when Options does
// not set one: samples more than 500ms behind the most recent buffered
// timestamp are considered stale.
const DefaultStaleOffsetNanos = 500_000_000

// Channel pairs a collector with the synchronizer-side buffer capacity for
// its stream.
type Channel struct {
	Collector collect.Collector
	Capacity  int
}

// Options holds the synchronizer-wide configuration.
type Options struct {
	// StopWhenFilledBuffer makes a buffer overflow terminal: the
	// buffer-filled listener fires and the synchronizer stops. When
	// false the oldest sample in the full buffer is evicted instead.
	StopWhenFilledBuffer bool

	// StaleOffsetNanos is the freshness window for stale detection.
	// Non-positive values fall back to DefaultStaleOffsetNanos.
	StaleOffsetNanos int64

	StaleDetectionEnabled bool

	// StopStartedOnFailure stops collectors that were already started
	// when a later collector fails to start. Off by default: the
	// historical behavior leaves them running.
	StopStartedOnFailure bool
}

// DefaultOptions returns the settings used by the stock pipelines:
// overflow stops the session and stale detection is on.
func DefaultOptions() Options {
	return Options{
		StopWhenFilledBuffer:  true,
		StaleOffsetNanos:      DefaultStaleOffsetNanos,
		StaleDetectionEnabled: true,
	}
}

// Synchronizer owns one primary and zero or more secondary channel
// buffers, orchestrates collector lifecycle, and runs the join.
//
// Listeners are invoked under the synchronizer's lock and must not call
// back into it. The Synced instance handed to the synced listener is
// reused across emissions; copy it to retain data across calls.
type Synchronizer struct {
	mu   sync.Mutex
	opts Options

	channels   []*channelState // index 0 is the primary
	collectors []collect.Collector

	running        bool
	startTimestamp int64
	processed      uint64
	lastNotified   int64 // global watermark

	mostRecent     int64
	haveMostRecent bool
	oldest         int64
	haveOldest     bool

	synced measurement.Synced // reused emission instance

	onSynced       func(*measurement.Synced)
	onBufferFilled func(measurement.Kind)
	onStale        func([]*measurement.Measurement)
	onAccuracy     func(measurement.Kind, measurement.Accuracy)
}

// New builds a synchronizer from the primary channel and the secondaries
// in their declared order. Channel capacities must be positive and kinds
// unique.
func New(primary Channel, secondaries []Channel, opts Options) (*Synchronizer, error) {
	if opts.StaleOffsetNanos <= 0 {
		opts.StaleOffsetNanos = DefaultStaleOffsetNanos
	}

	s := &Synchronizer{opts: opts}

	all := append([]Channel{primary}, secondaries...)
	kinds := make(map[measurement.Kind]bool, len(all))
	for _, ch := range all {
		if ch.Collector == nil {
			return nil, fmt.Errorf("syncer: channel without a collector")
		}
		kind := ch.Collector.Kind()
		if ch.Capacity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCapacity, kind)
		}
		if kinds[kind] {
			return nil, fmt.Errorf("syncer: duplicate channel kind %s", kind)
		}
		kinds[kind] = true
		s.channels = append(s.channels, newChannelState(kind, ch.Capacity))
		s.collectors = append(s.collectors, ch.Collector)
	}

	for i, col := range s.collectors {
		idx := i
		kind := s.channels[i].kind
		col.SetHandler(collect.Handler{
			OnMeasurement: func(m *measurement.Measurement) {
				s.handleMeasurement(idx, m)
			},
			OnAccuracyChange: func(a measurement.Accuracy) {
				s.handleAccuracy(kind, a)
			},
		})
	}
	return s, nil
}

// Start begins a session using a freshly captured monotonic timestamp.
func (s *Synchronizer) Start() error {
	return s.StartAt(time.Now().UnixNano())
}

// StartAt begins a session at the given reference timestamp. Collectors
// start primary first; the first failure fails the whole call and the
// synchronizer stays stopped. Collectors already started are left running
// unless Options.StopStartedOnFailure is set.
func (s *Synchronizer) StartAt(timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.startTimestamp = timestamp

	var started []collect.Collector
	for i, col := range s.collectors {
		if err := col.Start(timestamp); err != nil {
			if s.opts.StopStartedOnFailure {
				for _, prev := range started {
					prev.Stop()
				}
			}
			return fmt.Errorf("%w: %s: %v", ErrCollectorStart, s.channels[i].kind, err)
		}
		started = append(started, col)
	}

	s.running = true
	return nil
}

// Stop tears the session down and restores the post-construction state:
// buffers, scratch queues, seen flags, watermarks, counters, and the
// buffered-timestamp extremes. Idempotent; collector teardown is best
// effort.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Synchronizer) stopLocked() {
	for _, col := range s.collectors {
		col.Stop()
	}
	for _, ch := range s.channels {
		ch.reset()
	}
	s.processed = 0
	s.lastNotified = 0
	s.haveMostRecent = false
	s.mostRecent = 0
	s.haveOldest = false
	s.oldest = 0
	s.synced.Clear()
	s.running = false
}

// handleMeasurement is the per-channel delivery callback: push, stale
// sweep, then a join attempt. Runs synchronously on the collector's
// delivery goroutine so output order is deterministic with respect to
// arrival order.
func (s *Synchronizer) handleMeasurement(idx int, m *measurement.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ch := s.channels[idx]
	if ch.full() {
		if s.opts.StopWhenFilledBuffer {
			cb := s.onBufferFilled
			kind := ch.kind
			s.stopLocked()
			if cb != nil {
				cb(kind)
			}
			return
		}
		ch.evictOldest()
	}

	ch.append(m.Copy())
	if !s.haveMostRecent || m.Timestamp > s.mostRecent {
		s.mostRecent = m.Timestamp
		s.haveMostRecent = true
	}
	if !s.haveOldest || m.Timestamp < s.oldest {
		s.oldest = m.Timestamp
		s.haveOldest = true
	}

	if s.opts.StaleDetectionEnabled {
		s.sweepStaleLocked()
	}

	s.processLocked()
	s.refreshExtremesLocked()
}

func (s *Synchronizer) handleAccuracy(kind measurement.Kind, a measurement.Accuracy) {
	s.mu.Lock()
	cb := s.onAccuracy
	running := s.running
	s.mu.Unlock()
	if running && cb != nil {
		cb(kind, a)
	}
}

// sweepStaleLocked removes, from every buffer, measurements older than
// mostRecent minus the stale offset and reports them as one batch.
func (s *Synchronizer) sweepStaleLocked() {
	if !s.haveMostRecent {
		return
	}
	threshold := s.mostRecent - s.opts.StaleOffsetNanos

	var batch []*measurement.Measurement
	for _, ch := range s.channels {
		batch = append(batch, ch.sweepStale(threshold)...)
	}
	if len(batch) > 0 && s.onStale != nil {
		s.onStale(batch)
	}
}

// processLocked drains the primary buffer head first, emitting one synced
// measurement per usable primary sample. It pauses whenever any secondary
// buffer is empty: a secondary that merely lags must get the chance to
// deliver the sample that belongs at the current reference time, and a
// channel that has never delivered must not be claimed absent-but-valid.
// The attempt is retried on every subsequent push from any channel.
func (s *Synchronizer) processLocked() {
	primary := s.channels[0]

	for {
		pm := primary.peek()
		if pm == nil {
			return
		}
		t := pm.Timestamp

		// A primary sample at or before the global watermark cannot
		// produce a new output; consume it to keep emissions strictly
		// increasing under bursts of equal timestamps.
		if s.lastNotified != 0 && t <= s.lastNotified {
			primary.popFront()
			continue
		}

		for _, sec := range s.channels[1:] {
			if sec.empty() {
				return
			}
		}

		s.synced.Clear()
		s.synced.Timestamp = t
		s.synced.Set(primary.kind, pm)

		for _, sec := range s.channels[1:] {
			cand := sec.takeUpTo(t)
			switch {
			case cand != nil && cand.Timestamp > sec.lastNotified:
				sec.held = cand
				sec.lastNotified = cand.Timestamp
				s.synced.Set(sec.kind, cand)
			case sec.held != nil:
				// Nothing new at or before t; the slot keeps the
				// last contributed value per the watermark.
				s.synced.Set(sec.kind, sec.held)
			}
		}

		primary.popFront()
		primary.lastNotified = t
		s.lastNotified = t
		s.processed++

		if s.onSynced != nil {
			s.onSynced(&s.synced)
		}
	}
}

// refreshExtremesLocked recomputes the oldest and most recent timestamps
// represented across all buffers; both are absent when nothing is
// buffered.
func (s *Synchronizer) refreshExtremesLocked() {
	s.haveOldest = false
	s.haveMostRecent = false
	for _, ch := range s.channels {
		lo, hi, ok := ch.extremes()
		if !ok {
			continue
		}
		if !s.haveOldest || lo < s.oldest {
			s.oldest = lo
			s.haveOldest = true
		}
		if !s.haveMostRecent || hi > s.mostRecent {
			s.mostRecent = hi
			s.haveMostRecent = true
		}
	}
	if !s.haveOldest {
		s.oldest = 0
		s.mostRecent = 0
	}
}

// SetSyncedListener replaces the synced-measurement listener. All
// listeners may be replaced at any time, including mid-session.
func (s *Synchronizer) SetSyncedListener(fn func(*measurement.Synced)) {
	s.mu.Lock()
	s.onSynced = fn
	s.mu.Unlock()
}

// SetBufferFilledListener replaces the overflow listener, fired once per
// overflow event when StopWhenFilledBuffer is set.
func (s *Synchronizer) SetBufferFilledListener(fn func(measurement.Kind)) {
	s.mu.Lock()
	s.onBufferFilled = fn
	s.mu.Unlock()
}

// SetStaleListener replaces the stale-detected listener, fired with each
// batch of discarded stale measurements.
func (s *Synchronizer) SetStaleListener(fn func([]*measurement.Measurement)) {
	s.mu.Lock()
	s.onStale = fn
	s.mu.Unlock()
}

// SetAccuracyListener replaces the per-channel accuracy-changed listener.
func (s *Synchronizer) SetAccuracyListener(fn func(measurement.Kind, measurement.Accuracy)) {
	s.mu.Lock()
	s.onAccuracy = fn
	s.mu.Unlock()
}

// Running reports whether a session is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StartTimestamp returns the reference timestamp of the last Start
// attempt.
func (s *Synchronizer) StartTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTimestamp
}

// ProcessedMeasurements is the number of synced measurements emitted this
// session.
func (s *Synchronizer) ProcessedMeasurements() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// MostRecentTimestamp is the newest timestamp currently buffered, absent
// when no data is buffered.
func (s *Synchronizer) MostRecentTimestamp() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mostRecent, s.haveMostRecent
}

// OldestTimestamp is the oldest timestamp currently buffered, absent when
// no data is buffered.
func (s *Synchronizer) OldestTimestamp() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oldest, s.haveOldest
}

// BufferUsage is bufferedCount / capacity for the given channel, 0 for a
// kind that is not configured.
func (s *Synchronizer) BufferUsage(kind measurement.Kind) float64 {
	for _, ch := range s.channels {
		if ch.kind == kind {
			return ch.usage()
		}
	}
	return 0
}

// Collector returns the collector serving the given channel, nil if the
// kind is not configured. Useful for availability, usage, and
// start-offset introspection.
func (s *Synchronizer) Collector(kind measurement.Kind) collect.Collector {
	for i, ch := range s.channels {
		if ch.kind == kind {
			return s.collectors[i]
		}
	}
	return nil
}

// Kinds returns the configured channel kinds, primary first.
func (s *Synchronizer) Kinds() []measurement.Kind {
	out := make([]measurement.Kind, len(s.channels))
	for i, ch := range s.channels {
		out[i] = ch.kind
	}
	return out
}
