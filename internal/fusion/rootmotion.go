// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/orientation"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// Mode selects the root motion strategy.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeStep      Mode = "step"
	ModeIntegrate Mode = "integrate"
)

// stepReleaseRatio sets the lower hysteresis edge relative to the threshold.
const stepReleaseRatio = 0.5

// RootMotionParams holds the tuning of every strategy; each reads only its own fields.
type RootMotionParams struct {
	Pelvis            int     // sensor index on the pelvis
	StepThreshold     float64 // accY that starts a step
	StepLength        float64 // forward translation per step
	AccelDamping      float64 // velocity multiplier per tick, [0,1)
	GravityBlendSpeed float64 // low pass rate of the gravity estimate, per second
}

// RootMotionState is the estimator's internal state, exported for observers.
type RootMotionState struct {
	Velocity     r3.Vec `json:"velocity"`
	Gravity      r3.Vec `json:"gravity"`
	StepDetected bool   `json:"step_detected"`
	Steps        int    `json:"steps"`
}

// RootMotion moves the character root once per tick.
type RootMotion interface {
	Mode() Mode
	// Update runs one tick of dt seconds, after rotations were retargeted.
	Update(sk skeleton.Skeleton, frames *imu.FrameStore, dt float64)
	// Reset zeroes velocity and seeds the gravity estimate. Called on calibration.
	Reset(gravity r3.Vec)
	State() RootMotionState
}

// NewRootMotion builds the strategy for mode.
func NewRootMotion(mode Mode, p RootMotionParams, binding skeleton.Binding) (RootMotion, error) {
	switch mode {
	case ModeNone, "":
		return noRootMotion{}, nil
	case ModeStep:
		if p.StepThreshold <= 0 {
			return nil, fmt.Errorf("step threshold must be positive, got %v", p.StepThreshold)
		}
		return &stepRootMotion{params: p, binding: binding}, nil
	case ModeIntegrate:
		if p.AccelDamping < 0 || p.AccelDamping >= 1 {
			return nil, fmt.Errorf("accel damping must be in [0,1), got %v", p.AccelDamping)
		}
		if p.GravityBlendSpeed < 0 {
			return nil, fmt.Errorf("gravity blend speed must not be negative, got %v", p.GravityBlendSpeed)
		}
		return &integrateRootMotion{
			params:  p,
			binding: binding,
			state:   RootMotionState{Gravity: r3.Scale(orientation.StandardGravity, orientation.Up)},
		}, nil
	default:
		return nil, fmt.Errorf("unknown root motion mode %q", mode)
	}
}

// pelvisFrame returns the pelvis frame and bone, or false when the pelvis
// sensor is out of range or unbound.
func pelvisFrame(binding skeleton.Binding, frames *imu.FrameStore, pelvis int) (imu.SensorFrame, skeleton.Bone, bool) {
	bone, ok := binding.Bone(pelvis)
	if !ok {
		return imu.SensorFrame{}, skeleton.NoBone, false
	}
	f, ok := frames.Frame(pelvis)
	if !ok {
		return imu.SensorFrame{}, skeleton.NoBone, false
	}
	return f, bone, true
}

type noRootMotion struct{}

func (noRootMotion) Mode() Mode { return ModeNone }
func (noRootMotion) Update(skeleton.Skeleton, *imu.FrameStore, float64) {}
func (noRootMotion) Reset(r3.Vec) {}
func (noRootMotion) State() RootMotionState { return RootMotionState{} }

// stepRootMotion moves the root one stride forward per rising edge of the
// pelvis vertical acceleration.
type stepRootMotion struct {
	params  RootMotionParams
	binding skeleton.Binding
	state   RootMotionState
}

func (s *stepRootMotion) Mode() Mode { return ModeStep }

func (s *stepRootMotion) Update(sk skeleton.Skeleton, frames *imu.FrameStore, _ float64) {
	f, _, ok := pelvisFrame(s.binding, frames, s.params.Pelvis)
	if !ok {
		return
	}
	accY := f.Acc.Y

	switch {
	case !s.state.StepDetected && accY > s.params.StepThreshold:
		s.state.StepDetected = true
		s.state.Steps++
		forward := orientation.Rotate(sk.Root().Rotation, orientation.Forward)
		sk.TranslateRoot(r3.Scale(s.params.StepLength, forward))
	case s.state.StepDetected && accY < s.params.StepThreshold*stepReleaseRatio:
		s.state.StepDetected = false
	}
}

// Reset leaves the edge flag alone: a step in progress stays in progress.
func (s *stepRootMotion) Reset(r3.Vec) {}

func (s *stepRootMotion) State() RootMotionState { return s.state }

// integrateRootMotion dead-reckons the root from pelvis acceleration with a
// low-pass gravity estimate. Damping bounds the drift, nothing removes it.
type integrateRootMotion struct {
	params  RootMotionParams
	binding skeleton.Binding
	state   RootMotionState
}

func (m *integrateRootMotion) Mode() Mode { return ModeIntegrate }

func (m *integrateRootMotion) Update(sk skeleton.Skeleton, frames *imu.FrameStore, dt float64) {
	f, bone, ok := pelvisFrame(m.binding, frames, m.params.Pelvis)
	if !ok {
		return
	}

	world := orientation.Rotate(sk.WorldRotation(bone), f.Acc)
	m.state.Gravity = orientation.Lerp(m.state.Gravity, world, dt*m.params.GravityBlendSpeed)
	linear := r3.Sub(world, m.state.Gravity)

	m.state.Velocity = r3.Add(m.state.Velocity, r3.Scale(dt, linear))
	m.state.Velocity = r3.Scale(m.params.AccelDamping, m.state.Velocity)

	sk.TranslateRoot(r3.Scale(dt, m.state.Velocity))
}

func (m *integrateRootMotion) Reset(gravity r3.Vec) {
	m.state.Velocity = r3.Vec{}
	m.state.Gravity = gravity
}

func (m *integrateRootMotion) State() RootMotionState { return m.state }
