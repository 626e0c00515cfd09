// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion turns the latest sensor frames into skeleton motion:
// calibration offsets, smoothed bone rotations and root translation.
package fusion

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/orientation"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// Calibrator holds the per-sensor rotation offsets that map sensor
// orientation onto bone world rotation, captured from a reference pose.
type Calibrator struct {
	binding    skeleton.Binding
	pelvis     int
	offsets    []quat.Number
	gravity    r3.Vec
	calibrated bool
}

// NewCalibrator returns an uncalibrated Calibrator for binding. pelvis is
// the sensor index whose bone defines the gravity baseline.
func NewCalibrator(binding skeleton.Binding, pelvis int) *Calibrator {
	offsets := make([]quat.Number, binding.Sensors())
	for i := range offsets {
		offsets[i] = orientation.Identity()
	}
	return &Calibrator{
		binding: binding,
		pelvis:  pelvis,
		offsets: offsets,
		gravity: r3.Scale(orientation.StandardGravity, orientation.Up),
	}
}

// Calibrate captures offset = boneWorld * inverse(sensor) for every bound
// sensor and the gravity baseline from the pelvis bone. It replaces any
// previous calibration.
func (c *Calibrator) Calibrate(sk skeleton.Skeleton, frames *imu.FrameStore) {
	for i := range c.offsets {
		bone, ok := c.binding.Bone(i)
		if !ok {
			continue
		}
		f, ok := frames.Frame(i)
		if !ok {
			continue
		}
		sensor := orientation.FromEulerDegrees(f.Rot)
		c.offsets[i] = orientation.Normalize(
			orientation.Mul(sk.WorldRotation(bone), orientation.Inverse(sensor)))
	}

	up := orientation.Up
	if bone, ok := c.binding.Bone(c.pelvis); ok {
		up = orientation.Rotate(sk.WorldRotation(bone), orientation.Up)
	}
	c.gravity = r3.Scale(orientation.StandardGravity, up)
	c.calibrated = true
}

// Calibrated reports whether Calibrate has run at least once.
func (c *Calibrator) Calibrated() bool {
	return c.calibrated
}

// Offset returns the offset for sensor i. It is only meaningful once
// Calibrated is true.
func (c *Calibrator) Offset(i int) (quat.Number, bool) {
	if i < 0 || i >= len(c.offsets) {
		return quat.Number{}, false
	}
	return c.offsets[i], true
}

// Gravity returns the baseline gravity vector in world space.
func (c *Calibrator) Gravity() r3.Vec {
	return c.gravity
}
