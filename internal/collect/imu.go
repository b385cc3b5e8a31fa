// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package collect

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_syncer/internal/measurement"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// MPU9250 raw-to-physical scale factors at the power-on ranges
// (±2g, ±250°/s).
const (
	accelLSBPerG     = 16384.0
	gyroLSBPerDegSec = 131.0
	gravity          = 9.80665
)

// IMUOptions configures one MPU9250 device shared by its channel
// collectors.
type IMUOptions struct {
	SPIDevice     string        // e.g. /dev/spidev6.0
	CSPin         string        // GPIO name of the chip-select pin
	Interval      time.Duration // poll interval, defaults to 10ms
	Variant       measurement.Variant
	QueueCap      int
	OffsetEnabled bool
}

// IMU owns one MPU9250 over SPI and feeds its accelerometer and gyroscope
// collectors from a single poll loop. The loop runs while at least one of
// the collectors is started.
type IMU struct {
	opts IMUOptions
	dev  *mpu9250.MPU9250

	mu   sync.Mutex
	refs int
	quit chan struct{}

	accel *imuCollector
	gyro  *imuCollector
}

// OpenIMU initializes the MPU9250 over SPI.
func OpenIMU(opts IMUOptions) (*IMU, error) {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Millisecond
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("imu: periph host init: %w", err)
	}

	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("imu: CS pin %q not found", opts.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(opts.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("imu: SPI transport (%s): %w", opts.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("imu: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("imu: initialization: %w", err)
	}

	if err := dev.Calibrate(); err != nil {
		log.Printf("imu: WARNING: calibration failed: %v", err)
	} else {
		log.Printf("imu: calibration complete")
	}

	i := &IMU{opts: opts, dev: dev}
	i.accel = &imuCollector{
		imu:  i,
		kind: measurement.Accelerometer,
		p:    newPump(opts.QueueCap, opts.OffsetEnabled),
	}
	i.gyro = &imuCollector{
		imu:  i,
		kind: measurement.Gyroscope,
		p:    newPump(opts.QueueCap, opts.OffsetEnabled),
	}
	return i, nil
}

// Accelerometer returns the collector for the accelerometer channel.
func (i *IMU) Accelerometer() Collector { return i.accel }

// Gyroscope returns the collector for the gyroscope channel.
func (i *IMU) Gyroscope() Collector { return i.gyro }

func (i *IMU) acquire() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refs++
	if i.refs == 1 {
		i.quit = make(chan struct{})
		go i.poll(i.quit)
	}
}

func (i *IMU) release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.refs == 0 {
		return
	}
	i.refs--
	if i.refs == 0 {
		close(i.quit)
		i.quit = nil
	}
}

func (i *IMU) poll(quit chan struct{}) {
	ticker := time.NewTicker(i.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C:
			i.readOnce(now.UnixNano())
		}
	}
}

func (i *IMU) readOnce(ts int64) {
	ax, err := i.dev.GetAccelerationX()
	if err != nil {
		log.Printf("imu: accel X read: %v", err)
		return
	}
	ay, err := i.dev.GetAccelerationY()
	if err != nil {
		log.Printf("imu: accel Y read: %v", err)
		return
	}
	az, err := i.dev.GetAccelerationZ()
	if err != nil {
		log.Printf("imu: accel Z read: %v", err)
		return
	}

	gx, err := i.dev.GetRotationX()
	if err != nil {
		log.Printf("imu: gyro X read: %v", err)
		return
	}
	gy, err := i.dev.GetRotationY()
	if err != nil {
		log.Printf("imu: gyro Y read: %v", err)
		return
	}
	gz, err := i.dev.GetRotationZ()
	if err != nil {
		log.Printf("imu: gyro Z read: %v", err)
		return
	}

	i.accel.p.offer(&measurement.Measurement{
		Kind:      measurement.Accelerometer,
		Variant:   i.opts.Variant,
		X:         float64(ax) / accelLSBPerG * gravity,
		Y:         float64(ay) / accelLSBPerG * gravity,
		Z:         float64(az) / accelLSBPerG * gravity,
		Timestamp: ts,
	})
	i.gyro.p.offer(&measurement.Measurement{
		Kind:      measurement.Gyroscope,
		Variant:   i.opts.Variant,
		X:         float64(gx) / gyroLSBPerDegSec * math.Pi / 180,
		Y:         float64(gy) / gyroLSBPerDegSec * math.Pi / 180,
		Z:         float64(gz) / gyroLSBPerDegSec * math.Pi / 180,
		Timestamp: ts,
	})
}

// imuCollector is one channel view of the shared device.
type imuCollector struct {
	imu  *IMU
	kind measurement.Kind
	p    *pump

	mu      sync.Mutex
	started bool
}

func (c *imuCollector) Kind() measurement.Kind { return c.kind }

func (c *imuCollector) Available() bool { return c.imu.dev != nil }

func (c *imuCollector) SetHandler(h Handler) { c.p.setHandler(h) }

func (c *imuCollector) Usage() float64 { return c.p.usage() }

func (c *imuCollector) StartOffset() (int64, bool) { return c.p.offsetValue() }

func (c *imuCollector) Start(referenceTimestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if !c.Available() {
		return fmt.Errorf("imu: %s sensor unavailable", c.kind)
	}
	c.p.start(referenceTimestamp)
	c.imu.acquire()
	c.started = true
	return nil
}

func (c *imuCollector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.imu.release()
	c.p.stop()
}
