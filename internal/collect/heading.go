// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package collect

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// HeadingOptions configures the NMEA attitude collector.
type HeadingOptions struct {
	Port          string // e.g. /dev/serial0
	BaudRate      uint
	QueueCap      int
	OffsetEnabled bool
}

// Heading reads NMEA sentences from a serial GPS compass and delivers the
// heading as attitude measurements (a yaw-only quaternion). HDT sentences
// are preferred; RMC course-over-ground is used when that is all the
// receiver sends.
type Heading struct {
	opts HeadingOptions
	p    *pump

	mu   sync.Mutex
	port io.ReadWriteCloser
}

func NewHeading(opts HeadingOptions) *Heading {
	if opts.BaudRate == 0 {
		opts.BaudRate = 9600
	}
	return &Heading{
		opts: opts,
		p:    newPump(opts.QueueCap, opts.OffsetEnabled),
	}
}

func (h *Heading) Kind() measurement.Kind { return measurement.Attitude }

func (h *Heading) Available() bool {
	_, err := os.Stat(h.opts.Port)
	return err == nil
}

func (h *Heading) SetHandler(hd Handler) { h.p.setHandler(hd) }

func (h *Heading) Usage() float64 { return h.p.usage() }

func (h *Heading) StartOffset() (int64, bool) { return h.p.offsetValue() }

func (h *Heading) Start(referenceTimestamp int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.port != nil {
		return nil
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:        h.opts.Port,
		BaudRate:        h.opts.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("heading: open serial port %s: %w", h.opts.Port, err)
	}
	h.port = port
	h.p.start(referenceTimestamp)
	go h.read(port)
	return nil
}

func (h *Heading) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.port == nil {
		return
	}
	h.port.Close() // unblocks the reader goroutine
	h.port = nil
	h.p.stop()
}

func (h *Heading) read(port io.Reader) {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Closed on Stop, or the device went away.
			return
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// Noisy receivers emit partial sentences; skip them.
			continue
		}

		var headingDeg float64
		var acc measurement.Accuracy
		switch sentence.DataType() {
		case nmea.TypeHDT:
			hdt := sentence.(nmea.HDT)
			headingDeg = hdt.Heading
			acc = measurement.AccuracyHigh
		case nmea.TypeRMC:
			rmc := sentence.(nmea.RMC)
			if rmc.Validity != "A" {
				continue
			}
			headingDeg = rmc.Course
			acc = measurement.AccuracyMedium
		default:
			continue
		}

		h.p.offer(headingMeasurement(headingDeg, acc, time.Now().UnixNano()))
	}
}

// headingMeasurement packs a heading in degrees as a yaw-only quaternion.
func headingMeasurement(deg float64, acc measurement.Accuracy, ts int64) *measurement.Measurement {
	yaw := deg * math.Pi / 180
	return &measurement.Measurement{
		Kind:      measurement.Attitude,
		Variant:   measurement.Calibrated,
		W:         math.Cos(yaw / 2),
		Z:         math.Sin(yaw / 2),
		Timestamp: ts,
		Accuracy:  acc,
	}
}
