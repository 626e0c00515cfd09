// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

// Port is the minimal surface the link needs from a serial device.
// Read must return ErrReadTimeout when the configured read timeout elapses
// without data.
type Port interface {
	io.Reader
	io.Closer
}

// Driver selects the serial backend.
type Driver string

const (
	DriverBugst   Driver = "bugst"   // go.bug.st/serial, native read timeout
	DriverJacobsa Driver = "jacobsa" // github.com/jacobsa/go-serial, termios VTIME
)

// PortOptions describes how to open the costume's serial device.
type PortOptions struct {
	Path        string
	BaudRate    int
	ReadTimeout time.Duration
	Driver      Driver
}

// Opener opens a serial port. Swapped out in tests.
type Opener func(opts PortOptions) (Port, error)

// Open opens the device with the backend named in opts.Driver.
// Failures are returned as *DeviceFault.
func Open(opts PortOptions) (Port, error) {
	if opts.Path == "" {
		return nil, &DeviceFault{Op: "open", Err: fmt.Errorf("no serial port configured")}
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}

	var (
		p   Port
		err error
	)
	switch opts.Driver {
	case DriverBugst, "":
		p, err = openBugst(opts)
	case DriverJacobsa:
		p, err = openJacobsa(opts)
	default:
		err = fmt.Errorf("unknown serial driver %q", opts.Driver)
	}
	if err != nil {
		return nil, &DeviceFault{Op: "open", Port: opts.Path, Err: err}
	}

	monitoring.Logf("sensors: serial port %s opened at %d baud (driver=%s, read timeout=%s)",
		opts.Path, opts.BaudRate, driverName(opts.Driver), opts.ReadTimeout)
	return p, nil
}

func driverName(d Driver) Driver {
	if d == "" {
		return DriverBugst
	}
	return d
}
