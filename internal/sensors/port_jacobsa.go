// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// jacobsaPort adapts jacobsa/go-serial opened with MinimumReadSize 0, where
// an expired inter-character timer surfaces as a zero byte read (io.EOF).
type jacobsaPort struct {
	rwc io.ReadWriteCloser
}

// vtime rounds a timeout to the termios VTIME resolution (100ms, max 25.5s).
func vtime(d time.Duration) uint {
	ms := (d.Milliseconds() + 99) / 100 * 100
	switch {
	case ms < 100:
		ms = 100
	case ms > 25500:
		ms = 25500
	}
	return uint(ms)
}

func openJacobsa(opts PortOptions) (Port, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.Path,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: vtime(opts.ReadTimeout),
	}
	rwc, err := serial.Open(serialOpts)
	if err != nil {
		return nil, err
	}
	return &jacobsaPort{rwc: rwc}, nil
}

func (p *jacobsaPort) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, ErrReadTimeout
	}
	if errors.Is(err, io.EOF) {
		// data arrived, the timeout is reported on the next call
		err = nil
	}
	return n, err
}

func (p *jacobsaPort) Close() error {
	return p.rwc.Close()
}
