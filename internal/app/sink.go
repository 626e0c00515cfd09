// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

// Sink presents snapshots somewhere: a terminal, a broker, a browser, a panel.
// Handle runs on the sink's own goroutine, never on the tick path.
type Sink interface {
	Name() string
	Handle(s fusion.Snapshot) error
	Close() error
}

// mailbox is a one slot hand-off where a newer snapshot replaces an unread one.
type mailbox struct {
	ch chan fusion.Snapshot
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan fusion.Snapshot, 1)}
}

// Observe implements fusion.Observer. It never blocks.
func (m *mailbox) Observe(s fusion.Snapshot) {
	for {
		select {
		case m.ch <- s:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// sinkRunner drives one Sink from its mailbox, at most once per interval.
type sinkRunner struct {
	sink     Sink
	box      *mailbox
	interval time.Duration
	clock    clock.Clock
	wg       sync.WaitGroup
}

func newSinkRunner(s Sink, interval time.Duration, clk clock.Clock) *sinkRunner {
	return &sinkRunner{sink: s, box: newMailbox(), interval: interval, clock: clk}
}

func (r *sinkRunner) Observe(s fusion.Snapshot) {
	r.box.Observe(s)
}

func (r *sinkRunner) start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-r.box.ch:
				if r.interval > 0 && !last.IsZero() {
					if wait := r.interval - r.clock.Since(last); wait > 0 {
						select {
						case <-ctx.Done():
							return
						case <-r.clock.After(wait):
						}
						// something newer may have arrived meanwhile
						select {
						case s = <-r.box.ch:
						default:
						}
					}
				}
				last = r.clock.Now()
				if err := r.sink.Handle(s); err != nil {
					monitoring.Logf("WARNING: %s sink: %v", r.sink.Name(), err)
				}
			}
		}
	}()
}

// stop waits for the goroutine, whose context must already be cancelled, then closes the sink.
func (r *sinkRunner) stop() {
	r.wg.Wait()
	if err := r.sink.Close(); err != nil {
		monitoring.Logf("WARNING: %s sink close: %v", r.sink.Name(), err)
	}
}
