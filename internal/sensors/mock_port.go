// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/orientation"
)

// stepHz is the cadence of the synthetic pelvis bounce.
const stepHz = 1.8

// MockPort is a synthetic costume. Every interval it emits one plain line
// per sensor, with smooth orientation waveforms and a periodic vertical
// bounce on the pelvis sensor so step detection has something to see.
type MockPort struct {
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	pelvis   int
	sources  []orientation.Source
	start    time.Time
	nmea     bool

	mu      sync.Mutex
	pending []byte
	next    time.Time
	closed  bool
}

// MockPortOptions configures NewMockPort.
type MockPortOptions struct {
	Sensors     int
	Pelvis      int
	Interval    time.Duration // emission period, default 20ms
	ReadTimeout time.Duration // default 100ms
	NMEA        bool          // emit $PIMU sentences instead of plain lines
	Clock       clock.Clock
}

// NewMockPort creates a synthetic port.
func NewMockPort(opts MockPortOptions) *MockPort {
	if opts.Interval <= 0 {
		opts.Interval = 20 * time.Millisecond
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	sources := make([]orientation.Source, opts.Sensors)
	for i := range sources {
		sources[i] = orientation.NewMockSource(float64(i) * 0.6)
	}
	now := opts.Clock.Now()
	return &MockPort{
		clock:    opts.Clock,
		interval: opts.Interval,
		timeout:  opts.ReadTimeout,
		pelvis:   opts.Pelvis,
		sources:  sources,
		start:    now,
		next:     now,
		nmea:     opts.NMEA,
	}
}

// Read implements Port. It blocks at most the read timeout.
func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	wait := m.next.Sub(m.clock.Now())
	m.mu.Unlock()

	if wait > m.timeout {
		m.clock.Sleep(m.timeout)
		return 0, ErrReadTimeout
	}
	if wait > 0 {
		m.clock.Sleep(wait)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	m.pending = append(m.pending, m.burst()...)
	m.next = m.next.Add(m.interval)
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

// burst renders one line per sensor.
func (m *MockPort) burst() []byte {
	t := m.clock.Now().Sub(m.start).Seconds()
	var sb strings.Builder
	for i, src := range m.sources {
		pose, _ := src.Next()
		acc := r3.Vec{Y: 1}
		if i == m.pelvis {
			acc.Y = 1 + 0.4*math.Sin(2*math.Pi*stepHz*t)
		}
		r := imu.Record{Index: i, Acc: acc, Rot: pose.Vec()}
		if m.nmea {
			sb.WriteString(FormatNMEA(r))
		} else {
			sb.WriteString(FormatRecord(r))
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// Close implements Port.
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
