package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_syncer/internal/collect"
	"github.com/relabs-tech/inertial_syncer/internal/config"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
	"github.com/relabs-tech/inertial_syncer/internal/syncer"
)

// RunProducer wires the hardware collectors into a synchronizer and
// publishes every synced measurement to MQTT. The accelerometer drives
// the output cadence; the gyroscope and, when a GPS compass is present,
// the attitude channel ride along as secondaries.
func RunProducer() error {
	log.Println("starting inertial-syncer producer")

	cfg := config.Get()

	variant := measurement.Calibrated
	if cfg.Uncalibrated {
		variant = measurement.Uncalibrated
	}

	imu, err := collect.OpenIMU(collect.IMUOptions{
		SPIDevice:     cfg.IMUSPIDevice,
		CSPin:         cfg.IMUCSPin,
		Interval:      time.Duration(cfg.IMUSampleIntervalMS) * time.Millisecond,
		Variant:       variant,
		OffsetEnabled: cfg.StartOffsetEnabled,
	})
	if err != nil {
		return err
	}

	secondaries := []syncer.Channel{
		{Collector: imu.Gyroscope(), Capacity: cfg.GyroCapacity},
	}

	heading := collect.NewHeading(collect.HeadingOptions{
		Port:          cfg.HeadingSerialPort,
		BaudRate:      cfg.HeadingBaudRate,
		OffsetEnabled: cfg.StartOffsetEnabled,
	})
	if heading.Available() {
		log.Printf("heading source available on %s, adding attitude channel", cfg.HeadingSerialPort)
		secondaries = append(secondaries, syncer.Channel{
			Collector: heading,
			Capacity:  cfg.AttitudeCapacity,
		})
	} else {
		log.Printf("no heading source on %s, attitude channel disabled", cfg.HeadingSerialPort)
	}

	s, err := syncer.New(
		syncer.Channel{Collector: imu.Accelerometer(), Capacity: cfg.AccelCapacity},
		secondaries,
		syncer.Options{
			StopWhenFilledBuffer:  cfg.StopWhenFilledBuffer,
			StaleOffsetNanos:      cfg.StaleOffsetNanos,
			StaleDetectionEnabled: cfg.StaleDetectionEnabled,
		},
	)
	if err != nil {
		return err
	}

	return runPipeline(s, cfg, cfg.MQTTClientIDProducer)
}

// runPipeline connects a built synchronizer to MQTT and runs until
// SIGINT/SIGTERM. Shared by the hardware and simulated producers.
func runPipeline(s *syncer.Synchronizer, cfg *config.Config, clientID string) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// Listeners run under the synchronizer lock; hand the data to a
	// publish goroutine instead of doing network I/O in the callback.
	out := make(chan *measurement.Synced, 64)
	s.SetSyncedListener(func(sm *measurement.Synced) {
		select {
		case out <- sm.Copy():
		default:
			// Broker slower than the sensors; drop rather than stall the join.
		}
	})
	s.SetStaleListener(func(batch []*measurement.Measurement) {
		log.Printf("stale: dropped %d measurements", len(batch))
		if payload, err := json.Marshal(batch); err == nil {
			client.Publish(cfg.TopicStale, 0, false, payload)
		}
	})
	s.SetBufferFilledListener(func(k measurement.Kind) {
		log.Printf("buffer filled on %s channel, session stopped", k)
	})
	s.SetAccuracyListener(func(k measurement.Kind, a measurement.Accuracy) {
		log.Printf("%s accuracy changed to %s", k, a)
	})

	go func() {
		for sm := range out {
			payload, err := json.Marshal(sm)
			if err != nil {
				log.Printf("json marshal error (synced): %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicSynced, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (synced): %v", token.Error())
			}
		}
	}()

	if err := s.Start(); err != nil {
		return err
	}
	log.Printf("synchronizer running, start timestamp %d", s.StartTimestamp())

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-statsTicker.C:
			logStats(s)
		case <-sig:
			log.Println("shutting down")
			s.Stop()
			close(out)
			return nil
		}
	}
}

// logStats prints one line with the emitted count plus per-channel buffer
// and collector queue usage.
func logStats(s *syncer.Synchronizer) {
	line := "stats:"
	for _, k := range s.Kinds() {
		line += fmt.Sprintf(" %s=%.0f%%/%.0f%%",
			k, s.BufferUsage(k)*100, s.Collector(k).Usage()*100)
	}
	line += fmt.Sprintf(" processed=%d", s.ProcessedMeasurements())
	log.Print(line)
}
