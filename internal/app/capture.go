// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/mocap_costume/internal/config"
	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
	"github.com/relabs-tech/mocap_costume/internal/sensors"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// PortOpener opens the costume's serial port.
type PortOpener func() (sensors.Port, error)

// SerialOpener opens the device described by cfg.
func SerialOpener(cfg *config.Config) PortOpener {
	return func() (sensors.Port, error) {
		return sensors.Open(sensors.PortOptions{
			Path:        cfg.SerialPort,
			BaudRate:    cfg.SerialBaudRate,
			ReadTimeout: cfg.ReadTimeout(),
			Driver:      sensors.Driver(cfg.SerialDriver),
		})
	}
}

// Capture owns the link, the pipeline and the sinks, and runs the tick loop.
type Capture struct {
	cfg      *config.Config
	open     PortOpener
	clock    clock.Clock
	rig      *skeleton.Rig
	pipeline *fusion.Pipeline
	link     *sensors.Link
	runners  []*sinkRunner
	commands chan Command
}

// NewCapture builds the rig, binding and pipeline from cfg. A nil clock
// means wall time.
func NewCapture(cfg *config.Config, open PortOpener, clk clock.Clock) (*Capture, error) {
	if clk == nil {
		clk = clock.New()
	}

	rig := skeleton.NewHumanoidRig()
	binding, err := skeleton.NewBinding(cfg.SensorCount, cfg.BoneMap, rig)
	if err != nil {
		return nil, fmt.Errorf("bone map: %w", err)
	}

	root, err := fusion.NewRootMotion(fusion.Mode(cfg.RootMode), fusion.RootMotionParams{
		Pelvis:            cfg.PelvisSensorIndex,
		StepThreshold:     cfg.StepThreshold,
		StepLength:        cfg.StepLength,
		AccelDamping:      cfg.AccelDamping,
		GravityBlendSpeed: cfg.GravityBlendSpeed,
	}, binding)
	if err != nil {
		return nil, fmt.Errorf("root motion: %w", err)
	}
	if _, ok := binding.Bone(cfg.PelvisSensorIndex); !ok && root.Mode() != fusion.ModeNone {
		monitoring.Logf("WARNING: pelvis sensor %d has no bone, root motion is disabled", cfg.PelvisSensorIndex)
	}

	p := fusion.NewPipeline(fusion.PipelineOptions{
		Skeleton:   rig,
		Binding:    binding,
		Sensors:    cfg.SensorCount,
		Pelvis:     cfg.PelvisSensorIndex,
		SlerpSpeed: cfg.RotSlerpSpeed,
		RootMotion: root,
		Clock:      clk,
	})

	return &Capture{
		cfg:      cfg,
		open:     open,
		clock:    clk,
		rig:      rig,
		pipeline: p,
		commands: make(chan Command, 8),
	}, nil
}

// Pipeline exposes the fusion pipeline, mainly for tests.
func (c *Capture) Pipeline() *fusion.Pipeline {
	return c.pipeline
}

// Rig returns the headless rig the pipeline drives.
func (c *Capture) Rig() *skeleton.Rig {
	return c.rig
}

// AddSink attaches s, fed at most once per interval (0 means every tick).
// Must be called before Run.
func (c *Capture) AddSink(s Sink, interval time.Duration) {
	r := newSinkRunner(s, interval, c.clock)
	c.runners = append(c.runners, r)
	c.pipeline.AddObserver(r)
}

// Submit queues an operator command. Safe from any goroutine; calibration is
// flagged directly on the pipeline, other commands are dropped if the queue is full.
func (c *Capture) Submit(cmd Command) {
	if cmd == CommandCalibrate {
		c.pipeline.RequestCalibration()
		return
	}
	select {
	case c.commands <- cmd:
	default:
		monitoring.Logf("WARNING: capture: command queue full, dropping %s", cmd)
	}
}

func (c *Capture) decoder() sensors.Decoder {
	if c.cfg.WireFormat == "nmea" {
		return sensors.NewNMEADecoder(c.cfg.SensorCount)
	}
	return sensors.PlainDecoder{Sensors: c.cfg.SensorCount}
}

// openLink replaces the current link and reports whether a port was opened.
// Failures are logged here; the pipeline stays without a source until the
// next reopen.
func (c *Capture) openLink() bool {
	c.closeLink()

	port, err := c.open()
	if err != nil {
		monitoring.Logf("ERROR: capture: %v; use reopen once the device is back", err)
		return false
	}
	c.link = sensors.NewLink(port, sensors.LinkOptions{
		Sensors: c.cfg.SensorCount,
		Decoder: c.decoder(),
		Name:    c.cfg.SerialPort,
	})
	c.link.Start()
	c.pipeline.SetSource(c.link)
	return true
}

func (c *Capture) closeLink() {
	if c.link == nil {
		return
	}
	c.pipeline.SetSource(nil)
	if err := c.link.Close(); err != nil {
		monitoring.Logf("WARNING: capture: closing serial port: %v", err)
	}
	st := c.link.Stats()
	monitoring.Logf("capture: link closed after %d lines (%d accepted, %d malformed)", st.Lines, st.Accepted, st.Malformed)
	c.link = nil
}

// Run drives the tick loop until ctx is cancelled or a quit command arrives.
// A device fault does not end Run; ingestion waits for a reopen command.
func (c *Capture) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, r := range c.runners {
		r.start(ctx)
	}
	defer func() {
		cancel()
		for _, r := range c.runners {
			r.stop()
		}
	}()

	// a missing device at startup is not fatal, see openLink
	c.openLink()
	defer c.closeLink()

	interval := c.cfg.TickInterval()
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	monitoring.Logf("capture: running at %s per tick, root mode %s; press ENTER in the neutral pose to calibrate",
		interval, c.cfg.RootMode)

	var (
		last     time.Time
		linkDone <-chan struct{}
	)
	if c.link != nil {
		linkDone = c.link.Done()
	}

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture: shutting down")
			return nil

		case <-linkDone:
			linkDone = nil
			var fault *sensors.DeviceFault
			if err := c.link.Err(); errors.As(err, &fault) {
				monitoring.Logf("capture: ingestion halted on %s, motion is frozen until reopen", fault.Op)
			}

		case cmd := <-c.commands:
			switch cmd {
			case CommandQuit:
				monitoring.Logf("capture: quit requested")
				return nil
			case CommandReopen:
				monitoring.Logf("capture: reopening serial link")
				linkDone = nil
				if c.openLink() {
					linkDone = c.link.Done()
				}
			}

		case t := <-ticker.C:
			// first tick assumes one nominal interval
			dt := interval
			if !last.IsZero() {
				dt = t.Sub(last)
			}
			last = t
			c.pipeline.Tick(dt)
		}
	}
}
