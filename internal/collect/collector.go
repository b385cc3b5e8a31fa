package collect

import (
	"sync"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// Handler receives a collector's output. OnMeasurement is invoked once per
// hardware sample; the measurement instance may be reused by the collector
// after the call returns, so handlers must copy what they keep.
type Handler struct {
	OnMeasurement    func(*measurement.Measurement)
	OnAccuracyChange func(measurement.Accuracy)
}

// Collector turns one hardware sensor stream into timestamped measurement
// callbacks. Implementations deliver asynchronously from their own
// goroutine; Start and Stop are only called by the owning synchronizer.
type Collector interface {
	// Start registers with the hardware and begins delivery. The reference
	// timestamp is the synchronizer's start time, used to compute this
	// collector's start offset when offset tracking is enabled.
	Start(referenceTimestamp int64) error

	// Stop unregisters and resets offset/counter state. It does not wait
	// for an in-flight delivery to finish.
	Stop()

	Kind() measurement.Kind

	// Available reports whether the underlying sensor can be used.
	Available() bool

	// StartOffset is the nanoseconds between Start and the first delivered
	// measurement. Absent until a measurement arrives or when offset
	// tracking is disabled.
	StartOffset() (int64, bool)

	// Usage is the fraction of the collector's internal delivery queue in
	// use, independent of the synchronizer's own buffers.
	Usage() float64

	SetHandler(Handler)
}

// defaultQueueCap is the delivery queue size used when a collector is
// configured with a non-positive one.
const defaultQueueCap = 64

// pump is the delivery machinery shared by collector implementations: a
// bounded queue between the sampling goroutine and a dispatch goroutine
// that invokes the handler, plus start-offset bookkeeping.
type pump struct {
	mu            sync.Mutex
	handler       Handler
	queue         chan *measurement.Measurement
	quit          chan struct{}
	running       bool
	offsetEnabled bool
	startRef      int64
	startOffset   int64
	haveOffset    bool
}

func newPump(queueCap int, offsetEnabled bool) *pump {
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	return &pump{
		queue:         make(chan *measurement.Measurement, queueCap),
		offsetEnabled: offsetEnabled,
	}
}

func (p *pump) setHandler(h Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *pump) start(referenceTimestamp int64) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.startRef = referenceTimestamp
	p.haveOffset = false
	p.quit = make(chan struct{})
	quit := p.quit
	p.mu.Unlock()

	go p.dispatch(quit)
}

func (p *pump) stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.haveOffset = false
	close(p.quit)
	// Drain anything still queued so usage drops back to zero.
	for {
		select {
		case <-p.queue:
		default:
			p.mu.Unlock()
			return
		}
	}
}

// offer enqueues a measurement without blocking. Samples are dropped when
// the queue is full or the pump is stopped; the synchronizer's buffers are
// the place where overflow has semantics, not here.
func (p *pump) offer(m *measurement.Measurement) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.offsetEnabled && !p.haveOffset {
		p.startOffset = m.Timestamp - p.startRef
		p.haveOffset = true
	}
	p.mu.Unlock()

	select {
	case p.queue <- m:
	default:
	}
}

func (p *pump) dispatch(quit chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case m := <-p.queue:
			p.mu.Lock()
			h := p.handler
			p.mu.Unlock()
			if h.OnMeasurement != nil {
				h.OnMeasurement(m)
			}
		}
	}
}

func (p *pump) notifyAccuracy(a measurement.Accuracy) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h.OnAccuracyChange != nil {
		h.OnAccuracyChange(a)
	}
}

func (p *pump) usage() float64 {
	return float64(len(p.queue)) / float64(cap(p.queue))
}

func (p *pump) offsetValue() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.offsetEnabled || !p.haveOffset {
		return 0, false
	}
	return p.startOffset, true
}
