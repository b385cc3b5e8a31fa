// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"

	"github.com/relabs-tech/inertial_syncer/internal/collect"
	"github.com/relabs-tech/inertial_syncer/internal/config"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
	"github.com/relabs-tech/inertial_syncer/internal/syncer"
)

// RunSimProducer runs the full five-channel pipeline on simulated
// collectors. Useful on machines without the sensor hardware.
func RunSimProducer() error {
	log.Println("starting inertial-syncer producer (simulated sensors)")

	cfg := config.Get()

	variant := measurement.Calibrated
	if cfg.Uncalibrated {
		variant = measurement.Uncalibrated
	}

	sim := func(k measurement.Kind, rate float64) collect.Collector {
		return collect.NewSim(collect.SimOptions{
			Kind:          k,
			Variant:       variant,
			RateHz:        rate,
			OffsetEnabled: cfg.StartOffsetEnabled,
		})
	}

	// Secondary rates are deliberately uneven, like real hardware.
	s, err := syncer.New(
		syncer.Channel{Collector: sim(measurement.Accelerometer, cfg.SimRateHz), Capacity: cfg.AccelCapacity},
		[]syncer.Channel{
			{Collector: sim(measurement.Gravity, cfg.SimRateHz), Capacity: cfg.GravityCapacity},
			{Collector: sim(measurement.Gyroscope, cfg.SimRateHz*2), Capacity: cfg.GyroCapacity},
			{Collector: sim(measurement.Attitude, cfg.SimRateHz/5), Capacity: cfg.AttitudeCapacity},
			{Collector: sim(measurement.Magnetometer, cfg.SimRateHz/2), Capacity: cfg.MagCapacity},
		},
		syncer.Options{
			StopWhenFilledBuffer:  cfg.StopWhenFilledBuffer,
			StaleOffsetNanos:      cfg.StaleOffsetNanos,
			StaleDetectionEnabled: cfg.StaleDetectionEnabled,
		},
	)
	if err != nil {
		return err
	}

	return runPipeline(s, cfg, cfg.MQTTClientIDProducer+"-sim")
}
