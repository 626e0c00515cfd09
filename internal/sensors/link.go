// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors owns the costume's serial link: it reads newline delimited
// records on a dedicated goroutine, decodes them and hands valid records to
// the tick path over a channel.
package sensors

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

const (
	// maxLineLength bounds a line with no newline; longer input is discarded.
	maxLineLength = 512
	readChunk     = 256

	defaultBuffer = 1024
)

// LinkOptions configures a Link.
type LinkOptions struct {
	Sensors int     // sensor count; records outside [0,Sensors) are malformed
	Decoder Decoder // defaults to PlainDecoder{Sensors}
	Buffer  int     // record channel capacity
	Name    string  // used in diagnostics, typically the device path
}

// Stats are running counters for one link.
type Stats struct {
	Lines     uint64 `json:"lines"`
	Accepted  uint64 `json:"accepted"`
	Malformed uint64 `json:"malformed"`
	Timeouts  uint64 `json:"timeouts"`
}

// Link reads records from a Port on its own goroutine.
//
// The goroutine touches only the port and the record channel. Close stops
// it cooperatively: the loop notices on its next read timeout, the caller
// waits for it, then the port is closed exactly once.
type Link struct {
	port    Port
	decoder Decoder
	name    string
	records chan imu.Record

	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	mu  sync.Mutex
	err error

	lines, accepted, malformedN, timeouts atomic.Uint64
}

// NewLink wraps an open port. Call Start to begin reading.
func NewLink(port Port, opts LinkOptions) *Link {
	if opts.Decoder == nil {
		opts.Decoder = PlainDecoder{Sensors: opts.Sensors}
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	return &Link{
		port:    port,
		decoder: opts.Decoder,
		name:    opts.Name,
		records: make(chan imu.Record, opts.Buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the read loop. Calling it more than once has no effect.
func (l *Link) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Records returns the channel of decoded records, in arrival order.
// It is closed when the read loop exits.
func (l *Link) Records() <-chan imu.Record {
	return l.records
}

// Done is closed once the read loop has exited, on shutdown or on a fault.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns the *DeviceFault that ended the read loop, or nil.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stats returns a copy of the link counters.
func (l *Link) Stats() Stats {
	return Stats{
		Lines:     l.lines.Load(),
		Accepted:  l.accepted.Load(),
		Malformed: l.malformedN.Load(),
		Timeouts:  l.timeouts.Load(),
	}
}

// Close signals the read loop to stop, waits for it, then closes the port.
// Latency is bounded by the port's read timeout. Safe to call repeatedly.
func (l *Link) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	// never started: nothing to wait for
	l.startOnce.Do(func() {
		close(l.records)
		close(l.done)
	})
	<-l.done
	l.closeOnce.Do(func() {
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}

func (l *Link) stopping() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *Link) run() {
	defer close(l.done)
	defer close(l.records)

	buf := make([]byte, readChunk)
	var (
		line       []byte
		discarding bool
	)

	for !l.stopping() {
		n, err := l.port.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for len(chunk) > 0 {
				i := bytes.IndexByte(chunk, '\n')
				if i < 0 {
					if !discarding {
						line = append(line, chunk...)
						if len(line) > maxLineLength {
							l.reject(malformed(string(line[:32])+"...", ReasonOverlong, nil))
							line = line[:0]
							discarding = true
						}
					}
					break
				}
				if discarding {
					discarding = false
				} else {
					line = append(line, chunk[:i]...)
					if len(line) > maxLineLength {
						l.reject(malformed(string(line[:32])+"...", ReasonOverlong, nil))
					} else if !l.handle(line) {
						return
					}
				}
				line = line[:0]
				chunk = chunk[i+1:]
			}
		}

		if err == nil {
			if n == 0 {
				l.timeouts.Add(1)
			}
			continue
		}
		if errors.Is(err, ErrReadTimeout) {
			l.timeouts.Add(1)
			continue
		}

		fault := &DeviceFault{Op: "read", Port: l.name, Err: err}
		var df *DeviceFault
		if errors.As(err, &df) {
			fault = df
		}
		l.mu.Lock()
		l.err = fault
		l.mu.Unlock()
		monitoring.Logf("ERROR: sensors: %v; ingestion stopped until the link is reopened", fault)
		return
	}
}

// handle decodes one line and queues it. It returns false if the link was
// stopped while waiting for channel space.
func (l *Link) handle(raw []byte) bool {
	s := string(bytes.TrimSpace(raw))
	if s == "" {
		return true
	}
	l.lines.Add(1)

	rec, err := l.decoder.Decode(s)
	if err != nil {
		l.reject(err)
		return true
	}

	select {
	case l.records <- rec:
		l.accepted.Add(1)
		return true
	case <-l.stop:
		return false
	}
}

func (l *Link) reject(err error) {
	l.malformedN.Add(1)
	monitoring.Debugf("sensors: dropped %v", err)
}
