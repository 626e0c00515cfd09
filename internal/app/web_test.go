// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mocap_costume/internal/fusion"
)

type commandLog struct {
	mu   sync.Mutex
	cmds []Command
}

func (c *commandLog) submit(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, cmd)
}

func (c *commandLog) all() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.cmds...)
}

func TestWebFramesEndpoint(t *testing.T) {
	sink := NewWebSink(func(Command) {})
	srv := httptest.NewServer(sink.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/frames")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, sink.Handle(testSnapshot()))

	resp, err = http.Get(srv.URL + "/api/frames")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got fusion.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Calibrated)
	assert.Equal(t, fusion.ModeStep, got.Mode)
	require.NotNil(t, got.Pose)
	assert.Equal(t, 1.5, got.Pose.RootPosition.Z)
}

func TestWebSocketStreamsAndAcceptsCommands(t *testing.T) {
	cmds := &commandLog{}
	sink := NewWebSink(cmds.submit)
	srv := httptest.NewServer(sink.Handler())
	defer srv.Close()
	defer sink.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// wait for the server side to register the client before publishing
	require.Eventually(t, func() bool {
		sink.mu.RLock()
		defer sink.mu.RUnlock()
		return len(sink.conns) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sink.Handle(testSnapshot()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got fusion.Snapshot
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, 5, got.Root.Steps)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"calibrate"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quit"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`reopen`)))
	assert.Eventually(t, func() bool {
		return len(cmds.all()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Command{CommandCalibrate, CommandReopen}, cmds.all())
}

func TestWebSocketGetsLatestOnConnect(t *testing.T) {
	sink := NewWebSink(func(Command) {})
	srv := httptest.NewServer(sink.Handler())
	defer srv.Close()
	defer sink.Close()

	require.NoError(t, sink.Handle(testSnapshot()))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"calibrated":true`)
}
