// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

func muteLogs(t *testing.T) *captureDebug {
	t.Helper()
	c := &captureDebug{}
	monitoring.SetLogger(nil)
	monitoring.SetDebugLogger(c.logf)
	t.Cleanup(func() {
		monitoring.SetLogger(log.Printf)
		monitoring.SetVerbose(false)
	})
	return c
}

func collect(t *testing.T, l *Link, n int) []imu.Record {
	t.Helper()
	var out []imu.Record
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case r, ok := <-l.Records():
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out after %d of %d records", len(out), n)
		}
	}
	return out
}

func TestLinkDeliversInArrivalOrder(t *testing.T) {
	muteLogs(t)
	// line boundaries deliberately fall mid-chunk
	port := newScriptedPort(
		"0 0 1 0 0 0 0\n1 0 1",
		" 0 0 0 0\n\n  \r\n2 0 1 0 10 20 30\r\n",
		"0 9 9 9 9 9 9\n",
	)
	l := NewLink(port, LinkOptions{Sensors: 3})
	l.Start()
	defer l.Close()

	recs := collect(t, l, 4)
	require.Len(t, recs, 4)
	assert.Equal(t, []int{0, 1, 2, 0}, []int{recs[0].Index, recs[1].Index, recs[2].Index, recs[3].Index})
	assert.Equal(t, 30.0, recs[2].Rot.Z)
	assert.Equal(t, 9.0, recs[3].Acc.X)

	assert.Eventually(t, func() bool { return l.Stats().Timeouts > 0 }, time.Second, 5*time.Millisecond)
	st := l.Stats()
	assert.Equal(t, uint64(4), st.Lines)
	assert.Equal(t, uint64(4), st.Accepted)
	assert.Zero(t, st.Malformed)
}

func TestLinkMalformedLineLogsOnce(t *testing.T) {
	dbg := muteLogs(t)
	port := newScriptedPort("abc 1 2 3 4 5 6\n0 0 0 0 0 0 0\n")
	l := NewLink(port, LinkOptions{Sensors: 1})
	l.Start()
	defer l.Close()

	recs := collect(t, l, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].Index)
	assert.Equal(t, 1, dbg.count())
	assert.Equal(t, uint64(1), l.Stats().Malformed)
	assert.NoError(t, l.Err())
}

func TestLinkOutOfRangeIndexDropped(t *testing.T) {
	dbg := muteLogs(t)
	port := newScriptedPort("5 0 0 0 0 0 0\n-1 0 0 0 0 0 0\n1 0 0 0 0 0 0\n")
	l := NewLink(port, LinkOptions{Sensors: 5})
	l.Start()
	defer l.Close()

	recs := collect(t, l, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Index)
	assert.Equal(t, 2, dbg.count())
}

func TestLinkOverlongLineDiscarded(t *testing.T) {
	dbg := muteLogs(t)
	junk := strings.Repeat("9", 3*maxLineLength)
	port := newScriptedPort(junk, junk+"\n", "0 0 0 0 0 0 0\n")
	l := NewLink(port, LinkOptions{Sensors: 1})
	l.Start()
	defer l.Close()

	recs := collect(t, l, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, dbg.count())
	assert.Equal(t, uint64(1), l.Stats().Malformed)
}

func TestLinkReadFaultStopsIngestion(t *testing.T) {
	muteLogs(t)
	var logged []string
	monitoring.SetLogger(func(format string, v ...any) { logged = append(logged, format) })

	cause := errors.New("device unplugged")
	port := newScriptedPort("0 0 0 0 0 0 0\n")
	port.failAfter = cause
	l := NewLink(port, LinkOptions{Sensors: 1, Name: "/dev/ttyUSB0"})
	l.Start()

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop on read fault")
	}

	var df *DeviceFault
	require.ErrorAs(t, l.Err(), &df)
	assert.Equal(t, "read", df.Op)
	assert.ErrorIs(t, l.Err(), cause)
	require.Len(t, logged, 1)
	assert.True(t, strings.HasPrefix(logged[0], "ERROR:"))

	// the record read before the fault is still delivered, then the channel closes
	recs := collect(t, l, 2)
	assert.Len(t, recs, 1)

	require.NoError(t, l.Close())
	assert.Equal(t, int32(1), port.closes.Load())
}

func TestLinkCloseIsBoundedAndOnce(t *testing.T) {
	muteLogs(t)
	port := newScriptedPort()
	port.timeout = 20 * time.Millisecond
	l := NewLink(port, LinkOptions{Sensors: 1})
	l.Start()

	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	require.NoError(t, l.Close())
	assert.Less(t, time.Since(start), port.timeout+100*time.Millisecond)

	require.NoError(t, l.Close())
	assert.Equal(t, int32(1), port.closes.Load())

	_, ok := <-l.Records()
	assert.False(t, ok)
}

func TestLinkCloseWhileBlockedOnFullChannel(t *testing.T) {
	muteLogs(t)
	port := newScriptedPort(strings.Repeat("0 0 0 0 0 0 0\n", 10))
	l := NewLink(port, LinkOptions{Sensors: 1, Buffer: 1})
	l.Start()

	assert.Eventually(t, func() bool { return l.Stats().Lines >= 2 }, time.Second, time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- l.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close blocked on a full record channel")
	}
}

func TestLinkCloseWithoutStart(t *testing.T) {
	port := newScriptedPort()
	l := NewLink(port, LinkOptions{Sensors: 1})
	require.NoError(t, l.Close())
	assert.Equal(t, int32(1), port.closes.Load())
	l.Start()
	<-l.Done()
}

func TestLinkWithMockPort(t *testing.T) {
	muteLogs(t)
	port := NewMockPort(MockPortOptions{Sensors: 3, Interval: time.Millisecond, ReadTimeout: 10 * time.Millisecond, NMEA: true})
	l := NewLink(port, LinkOptions{Sensors: 3, Decoder: NewNMEADecoder(3)})
	l.Start()

	recs := collect(t, l, 6)
	require.NoError(t, l.Close())
	require.Len(t, recs, 6)
	for i, r := range recs {
		assert.Equal(t, i%3, r.Index)
	}
	assert.Zero(t, l.Stats().Malformed)
}

func TestMockPortTimesOutBetweenBursts(t *testing.T) {
	mc := clock.NewMock()
	port := NewMockPort(MockPortOptions{Sensors: 1, Interval: time.Second, ReadTimeout: 10 * time.Millisecond, Clock: mc})

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(buf[:n]), "\n"))

	errc := make(chan error, 1)
	go func() {
		_, err := port.Read(buf)
		errc <- err
	}()
	// keep nudging the mock clock until the parked reader wakes up
	deadline := time.After(time.Second)
	for waiting := true; waiting; {
		select {
		case err := <-errc:
			assert.ErrorIs(t, err, ErrReadTimeout)
			waiting = false
		case <-deadline:
			t.Fatal("mock port read did not time out")
		case <-time.After(time.Millisecond):
			mc.Add(10 * time.Millisecond)
		}
	}

	require.NoError(t, port.Close())
	_, err = port.Read(buf)
	assert.Error(t, err)
}
