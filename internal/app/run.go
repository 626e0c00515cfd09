// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"os"

	"github.com/relabs-tech/mocap_costume/internal/config"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
	"github.com/relabs-tech/mocap_costume/internal/sensors"
)

// RunCapture runs the costume pipeline against the configured serial port,
// with every sink the config enables. Commands are read from stdin.
func RunCapture(ctx context.Context, cfg *config.Config, stdin io.Reader) error {
	monitoring.Logf("starting mocap costume capture")
	return run(ctx, cfg, SerialOpener(cfg), stdin)
}

// RunMockConsole runs the same pipeline against a synthetic costume, so the
// whole stack can be exercised without hardware.
func RunMockConsole(ctx context.Context, cfg *config.Config, stdin io.Reader) error {
	monitoring.Logf("starting mocap costume with mock sensors")
	open := func() (sensors.Port, error) {
		return sensors.NewMockPort(sensors.MockPortOptions{
			Sensors:     cfg.SensorCount,
			Pelvis:      cfg.PelvisSensorIndex,
			ReadTimeout: cfg.ReadTimeout(),
			NMEA:        cfg.WireFormat == "nmea",
		}), nil
	}
	if cfg.ConsoleLogInterval == 0 {
		cfg.ConsoleLogInterval = 1000
	}
	return run(ctx, cfg, open, stdin)
}

func run(ctx context.Context, cfg *config.Config, open PortOpener, stdin io.Reader) error {
	monitoring.SetVerbose(cfg.LogVerbose)

	capture, err := NewCapture(cfg, open, nil)
	if err != nil {
		return err
	}

	if cfg.ConsoleLogInterval > 0 {
		capture.AddSink(NewConsoleSink(os.Stdout), cfg.ConsoleInterval())
	}

	if cfg.MQTTBroker != "" {
		sink, err := ConnectMQTT(cfg, capture.Submit)
		if err != nil {
			monitoring.Logf("WARNING: mqtt sink disabled: %v", err)
		} else {
			capture.AddSink(sink, 0)
		}
	}

	if cfg.WebServerPort > 0 {
		sink := NewWebSink(capture.Submit)
		if err := sink.Listen(cfg.WebServerPort); err != nil {
			monitoring.Logf("WARNING: web sink disabled: %v", err)
		} else {
			capture.AddSink(sink, 0)
		}
	}

	if cfg.DisplayOLED {
		sink, err := OpenDisplay(cfg.DisplayI2CBus, cfg.DisplaySensorIndex)
		if err != nil {
			monitoring.Logf("WARNING: display sink disabled: %v", err)
		} else {
			capture.AddSink(sink, cfg.DisplayInterval())
		}
	}

	if stdin != nil {
		go func() {
			err := ReadCommands(stdin, capture.Submit, func(line string) {
				monitoring.Logf("unknown command %q (ENTER/c calibrate, r reopen, q quit)", line)
			})
			if err != nil {
				monitoring.Logf("WARNING: stdin: %v", err)
			}
		}()
	}

	return capture.Run(ctx)
}
