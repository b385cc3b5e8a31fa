// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/inertial_syncer/internal/app"
	"github.com/relabs-tech/inertial_syncer/internal/config"
)

func main() {
	log.Println("starting inertial-syncer producer")

	// Load configuration
	if err := config.InitGlobal("syncer_config.yaml"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
