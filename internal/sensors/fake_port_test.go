// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"sync"
	"sync/atomic"
	"time"
)

// scriptedPort replays chunks, then reports read timeouts until closed.
// A non-nil failAfter error is returned once the chunks are exhausted.
type scriptedPort struct {
	mu        sync.Mutex
	chunks    [][]byte
	failAfter error
	timeout   time.Duration

	closes atomic.Int32
}

func newScriptedPort(chunks ...string) *scriptedPort {
	p := &scriptedPort{timeout: 5 * time.Millisecond}
	for _, c := range chunks {
		p.chunks = append(p.chunks, []byte(c))
	}
	return p
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.chunks) > 0 {
		c := p.chunks[0]
		n := copy(b, c)
		if n < len(c) {
			p.chunks[0] = c[n:]
		} else {
			p.chunks = p.chunks[1:]
		}
		p.mu.Unlock()
		return n, nil
	}
	fail := p.failAfter
	p.mu.Unlock()

	if fail != nil {
		return 0, fail
	}
	time.Sleep(p.timeout)
	return 0, ErrReadTimeout
}

func (p *scriptedPort) Close() error {
	p.closes.Add(1)
	return nil
}

// captureDebug collects Debugf output for the duration of a test.
type captureDebug struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureDebug) logf(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, format)
	_ = v
}

func (c *captureDebug) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}
