// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/mocap_costume/internal/app"
	"github.com/relabs-tech/mocap_costume/internal/config"
)

func main() {
	configPath := flag.String("config", "./mocap_config.txt", "path to configuration file (optional)")
	flag.Parse()

	log.Println("starting mocap-costume (mock console)")

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("no config at %s, using defaults", *configPath)
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		err = cfg.Validate()
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMockConsole(ctx, cfg, os.Stdin); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
