// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// Snapshot is a read-only copy of the pipeline state after one tick.
type Snapshot struct {
	Time       time.Time         `json:"time"`
	Frames     []imu.SensorFrame `json:"frames"`
	Calibrated bool              `json:"calibrated"`
	Mode       Mode              `json:"root_mode"`
	Root       RootMotionState   `json:"root_motion"`
	Pose       *skeleton.Pose    `json:"pose,omitempty"`
}

// Observer receives a snapshot after every tick. It runs on the tick path
// and must not block.
type Observer interface {
	Observe(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// poser is implemented by skeletons that can export their state.
type poser interface {
	Pose() skeleton.Pose
}

// PipelineOptions wires a Pipeline.
type PipelineOptions struct {
	Skeleton   skeleton.Skeleton
	Binding    skeleton.Binding
	Sensors    int
	Pelvis     int
	SlerpSpeed float64
	RootMotion RootMotion
	Clock      clock.Clock
}

// Pipeline is the per-tick fusion path. Every method except
// RequestCalibration must be called from the tick goroutine.
type Pipeline struct {
	store     *imu.FrameStore
	skel      skeleton.Skeleton
	cal       *Calibrator
	retarget  *Retargeter
	root      RootMotion
	clock     clock.Clock
	source    imu.RecordSource
	observers []Observer

	calibrate atomic.Bool
}

// NewPipeline builds a dormant pipeline; it does nothing to the skeleton
// until the first calibration.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.RootMotion == nil {
		opts.RootMotion = noRootMotion{}
	}
	return &Pipeline{
		store:    imu.NewFrameStore(opts.Sensors),
		skel:     opts.Skeleton,
		cal:      NewCalibrator(opts.Binding, opts.Pelvis),
		retarget: NewRetargeter(opts.Binding, opts.SlerpSpeed),
		root:     opts.RootMotion,
		clock:    opts.Clock,
	}
}

// SetSource attaches the channel drained each tick, usually a sensors.Link.
// Passing nil detaches it.
func (p *Pipeline) SetSource(src imu.RecordSource) {
	p.source = src
}

// AddObserver registers o for future snapshots.
func (p *Pipeline) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// RequestCalibration asks for a calibration on the next tick. Safe from any goroutine.
func (p *Pipeline) RequestCalibration() {
	p.calibrate.Store(true)
}

// Calibrate captures offsets immediately from the current frames and rig,
// and resets root motion velocity.
func (p *Pipeline) Calibrate() {
	p.cal.Calibrate(p.skel, p.store)
	p.root.Reset(p.cal.Gravity())
	monitoring.Logf("fusion: calibrated %d bound sensors", p.cal.binding.Bound())
}

// Calibrated reports whether the pipeline has left its dormant state.
func (p *Pipeline) Calibrated() bool {
	return p.cal.Calibrated()
}

// Store exposes the frame table. Tick goroutine only.
func (p *Pipeline) Store() *imu.FrameStore {
	return p.store
}

// Tick runs one frame: drain, calibrate if requested, retarget, root motion.
func (p *Pipeline) Tick(dt time.Duration) {
	p.drain()

	if p.calibrate.Swap(false) {
		p.Calibrate()
	}

	if p.cal.Calibrated() {
		secs := dt.Seconds()
		p.retarget.Apply(p.skel, p.store, p.cal, secs)
		p.root.Update(p.skel, p.store, secs)
	}

	if len(p.observers) > 0 {
		s := p.Snapshot()
		for _, o := range p.observers {
			o.Observe(s)
		}
	}
}

// drain moves every queued record into the store without blocking.
func (p *Pipeline) drain() int {
	if p.source == nil {
		return 0
	}
	ch := p.source.Records()
	now := p.clock.Now()
	n := 0
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				// link ended, keep the last known frames
				p.source = nil
				return n
			}
			if p.store.Apply(r, now) {
				n++
			}
		default:
			return n
		}
	}
}

// Snapshot copies the current state.
func (p *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		Time:       p.clock.Now(),
		Frames:     p.store.Snapshot(),
		Calibrated: p.cal.Calibrated(),
		Mode:       p.root.Mode(),
		Root:       p.root.State(),
	}
	if ps, ok := p.skel.(poser); ok {
		pose := ps.Pose()
		s.Pose = &pose
	}
	return s
}
