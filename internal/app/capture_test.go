// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mocap_costume/internal/config"
	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
	"github.com/relabs-tech/mocap_costume/internal/sensors"
)

// linePort serves one script of bytes, then read timeouts until closed.
type linePort struct {
	mu     sync.Mutex
	data   []byte
	closed atomic.Bool
}

func (p *linePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.data) > 0 {
		n := copy(b, p.data)
		p.data = p.data[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	return 0, sensors.ErrReadTimeout
}

func (p *linePort) Close() error {
	p.closed.Store(true)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RootMode = "step"
	cfg.TickIntervalMS = 10
	return cfg
}

// waitFor advances the mock clock until a snapshot satisfies ok.
func waitFor(t *testing.T, mc *clock.Mock, sink *recordSink, ok func(fusion.Snapshot) bool) fusion.Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-sink.got:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatal("condition not reached")
		case <-time.After(time.Millisecond):
			mc.Add(10 * time.Millisecond)
		}
	}
}

func TestCaptureEndToEnd(t *testing.T) {
	mc := clock.NewMock()
	var opens atomic.Int32
	var ports []*linePort
	var portsMu sync.Mutex
	open := func() (sensors.Port, error) {
		opens.Add(1)
		p := &linePort{data: []byte("9 0 0 0 0 0 0\n0 0 1.5 0 0 0 0\n3 0 1 0 0 0 30\n")}
		portsMu.Lock()
		ports = append(ports, p)
		portsMu.Unlock()
		return p, nil
	}

	c, err := NewCapture(testConfig(), open, mc)
	require.NoError(t, err)
	sink := newRecordSink()
	c.AddSink(sink, 0)

	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background()) }()

	s := waitFor(t, mc, sink, func(s fusion.Snapshot) bool {
		return len(s.Frames) == 8 && s.Frames[0].Acc.Y == 1.5 && s.Frames[3].Rot.Z == 30
	})
	assert.False(t, s.Calibrated)

	c.Submit(CommandCalibrate)
	s = waitFor(t, mc, sink, func(s fusion.Snapshot) bool { return s.Calibrated })
	assert.Equal(t, 1, s.Root.Steps, "pelvis accY 1.5 is above the step threshold")
	require.NotNil(t, s.Pose)
	assert.InDelta(t, 0.3, s.Pose.RootPosition.Z, 1e-9)

	c.Submit(CommandReopen)
	assert.Eventually(t, func() bool { return opens.Load() == 2 }, 2*time.Second, time.Millisecond)
	portsMu.Lock()
	assert.True(t, ports[0].closed.Load())
	portsMu.Unlock()

	c.Submit(CommandQuit)
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not quit")
	}
	portsMu.Lock()
	defer portsMu.Unlock()
	assert.True(t, ports[1].closed.Load())
	assert.True(t, sink.isClosed())
}

// captureLogs records operator log formats until the test ends.
func captureLogs(t *testing.T) func() []string {
	t.Helper()
	var mu sync.Mutex
	var logged []string
	monitoring.SetLogger(func(format string, v ...any) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), logged...)
	}
}

func hasPrefix(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestCaptureSurvivesOpenFailure(t *testing.T) {
	logs := captureLogs(t)
	mc := clock.NewMock()
	var opens atomic.Int32
	open := func() (sensors.Port, error) {
		if opens.Add(1) == 1 {
			return nil, &sensors.DeviceFault{Op: "open", Port: "/dev/ttyUSB0", Err: errors.New("no such device")}
		}
		return &linePort{data: []byte("0 0 1 0 0 0 0\n")}, nil
	}

	c, err := NewCapture(testConfig(), open, mc)
	require.NoError(t, err)
	sink := newRecordSink()
	c.AddSink(sink, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	// ticks keep flowing with no device
	waitFor(t, mc, sink, func(s fusion.Snapshot) bool { return !s.Frames[0].Seen() })

	assert.True(t, hasPrefix(logs(), "ERROR: capture: "), "open failure goes to the operator log")

	c.Submit(CommandReopen)
	waitFor(t, mc, sink, func(s fusion.Snapshot) bool { return s.Frames[0].Seen() })
	assert.True(t, hasPrefix(logs(), "capture: reopening serial link"))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not stop on cancel")
	}
}

func TestNewCaptureWarnsOnUnboundPelvis(t *testing.T) {
	logs := captureLogs(t)
	cfg := testConfig()
	cfg.PelvisSensorIndex = 7
	delete(cfg.BoneMap, 7)
	_, err := NewCapture(cfg, nil, clock.NewMock())
	require.NoError(t, err)
	assert.True(t, hasPrefix(logs(), "WARNING: pelvis sensor 7 has no bone"))
}

func TestNewCaptureRejectsBadBoneMap(t *testing.T) {
	cfg := testConfig()
	cfg.BoneMap = map[int]string{0: "Tail"}
	_, err := NewCapture(cfg, nil, clock.NewMock())
	assert.ErrorContains(t, err, "Tail")

	cfg = testConfig()
	cfg.RootMode = "hover"
	_, err = NewCapture(cfg, nil, clock.NewMock())
	assert.ErrorContains(t, err, "root motion")
}
