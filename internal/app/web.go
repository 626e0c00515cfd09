// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

const wsWriteWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSink serves the latest snapshot over HTTP and streams every snapshot
// to websocket clients, which may send commands back.
type WebSink struct {
	submit func(Command)

	mu     sync.RWMutex
	latest []byte
	conns  map[*websocket.Conn]*sync.Mutex

	srv *http.Server
}

// NewWebSink returns a sink whose handler is not yet listening; see Listen.
func NewWebSink(submit func(Command)) *WebSink {
	return &WebSink{
		submit: submit,
		conns:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler routes /ws and /api/frames.
func (w *WebSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/api/frames", w.handleFrames)
	return mux
}

// Listen starts serving on port in the background.
func (w *WebSink) Listen(port int) error {
	addr := ":" + strconv.Itoa(port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	w.srv = &http.Server{Handler: w.Handler(), ReadHeaderTimeout: 5 * time.Second}
	monitoring.Logf("web server listening on %s", addr)
	go func() {
		if err := w.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("WARNING: web server stopped: %v", err)
		}
	}()
	return nil
}

func (w *WebSink) handleFrames(rw http.ResponseWriter, _ *http.Request) {
	w.mu.RLock()
	latest := w.latest
	w.mu.RUnlock()

	if latest == nil {
		http.Error(rw, "no data yet", http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	if _, err := rw.Write(latest); err != nil {
		monitoring.Logf("web: write error: %v", err)
	}
}

func (w *WebSink) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		monitoring.Logf("web: websocket upgrade error: %v", err)
		return
	}

	writeMu := &sync.Mutex{}
	w.mu.Lock()
	w.conns[conn] = writeMu
	latest := w.latest
	w.mu.Unlock()
	defer w.drop(conn)

	if latest != nil {
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		err := conn.WriteMessage(websocket.TextMessage, latest)
		writeMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handleRemoteCommand("web", msg, w.submit)
	}
}

func (w *WebSink) drop(conn *websocket.Conn) {
	w.mu.Lock()
	delete(w.conns, conn)
	w.mu.Unlock()
	conn.Close()
}

func (w *WebSink) Name() string { return "web" }

// Handle stores s for /api/frames and pushes it to every websocket client.
func (w *WebSink) Handle(s fusion.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("json marshal error (snapshot): %w", err)
	}

	w.mu.Lock()
	w.latest = payload
	conns := make(map[*websocket.Conn]*sync.Mutex, len(w.conns))
	for c, m := range w.conns {
		conns[c] = m
	}
	w.mu.Unlock()

	for conn, writeMu := range conns {
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		err := conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			// the read loop sees the broken connection and drops it
			conn.Close()
		}
	}
	return nil
}

func (w *WebSink) Close() error {
	w.mu.Lock()
	for conn := range w.conns {
		conn.Close()
	}
	w.mu.Unlock()
	if w.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.srv.Shutdown(ctx)
}
