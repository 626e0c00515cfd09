// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/orientation"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// Retargeter eases every bound bone toward its calibrated sensor rotation.
type Retargeter struct {
	binding skeleton.Binding
	rate    float64
}

// NewRetargeter returns a Retargeter. rate is the slerp speed per second;
// higher values follow the sensors more tightly.
func NewRetargeter(binding skeleton.Binding, rate float64) *Retargeter {
	return &Retargeter{binding: binding, rate: rate}
}

// Apply runs one tick of dt seconds. Sensors are visited in index order so a
// parent bone is updated before a child whose sensor has a higher index.
func (r *Retargeter) Apply(sk skeleton.Skeleton, frames *imu.FrameStore, cal *Calibrator, dt float64) {
	if !cal.Calibrated() {
		return
	}
	t := orientation.Clamp01(dt * r.rate)

	for i := 0; i < r.binding.Sensors(); i++ {
		bone, ok := r.binding.Bone(i)
		if !ok {
			continue
		}
		f, ok := frames.Frame(i)
		if !ok {
			continue
		}
		offset, _ := cal.Offset(i)

		desired := orientation.Mul(offset, orientation.FromEulerDegrees(f.Rot))
		if parent, ok := sk.Parent(bone); ok {
			desired = orientation.Mul(orientation.Inverse(sk.WorldRotation(parent)), desired)
		}
		local := orientation.Slerp(sk.LocalRotation(bone), orientation.Normalize(desired), t)
		sk.SetLocalRotation(bone, local)
	}
}
