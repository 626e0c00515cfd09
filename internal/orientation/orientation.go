// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation holds the rotation algebra shared by calibration,
// retargeting and root motion. Rotations are unit quaternions
// (gonum quat.Number); vectors are r3.Vec.
//
// Axis convention follows the rig: +Y is up, +Z is forward.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// StandardGravity is the magnitude used for the calibration gravity baseline.
const StandardGravity = 9.81

var (
	Up      = r3.Vec{Y: 1}
	Forward = r3.Vec{Z: 1}
)

// Pose is an orientation expressed as Euler angles in degrees, as the
// costume firmware reports them: Roll about X, Pitch about Y, Yaw about Z.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PoseFromVec maps a (rotX, rotY, rotZ) triple onto a Pose.
func PoseFromVec(v r3.Vec) Pose {
	return Pose{Roll: v.X, Pitch: v.Y, Yaw: v.Z}
}

// Vec returns the (rotX, rotY, rotZ) triple.
func (p Pose) Vec() r3.Vec {
	return r3.Vec{X: p.Roll, Y: p.Pitch, Z: p.Yaw}
}

// Quaternion converts the pose applying Z first, then X, then Y.
func (p Pose) Quaternion() quat.Number {
	return FromEulerDegrees(p.Vec())
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// Identity is the zero rotation.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// AxisAngle returns the rotation of rad radians about axis.
func AxisAngle(axis r3.Vec, rad float64) quat.Number {
	n := r3.Norm(axis)
	if n == 0 {
		return Identity()
	}
	s := math.Sin(rad/2) / n
	return quat.Number{
		Real: math.Cos(rad / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// FromEulerDegrees builds the rotation for Euler angles v (degrees),
// applied Z, then X, then Y.
func FromEulerDegrees(v r3.Vec) quat.Number {
	qx := AxisAngle(r3.Vec{X: 1}, v.X*math.Pi/180)
	qy := AxisAngle(r3.Vec{Y: 1}, v.Y*math.Pi/180)
	qz := AxisAngle(r3.Vec{Z: 1}, v.Z*math.Pi/180)
	return quat.Mul(qy, quat.Mul(qx, qz))
}

// Normalize scales q to unit length. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse rotation of q.
func Inverse(q quat.Number) quat.Number {
	if quat.Abs(q) == 0 {
		return Identity()
	}
	return quat.Inv(q)
}

// Mul composes rotations: the result applies b first, then a.
func Mul(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

// Rotate applies rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp interpolates along the shortest arc from a to b. t is clamped to [0, 1].
func Slerp(a, b quat.Number, t float64) quat.Number {
	t = Clamp01(t)
	a = Normalize(a)
	b = Normalize(b)

	d := dot(a, b)
	if d < 0 {
		b = quat.Scale(-1, b)
		d = -d
	}
	if d > 0.9995 {
		// nearly parallel, nlerp is accurate enough and avoids 0/0
		return Normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

// Lerp interpolates vectors linearly. t is clamped to [0, 1].
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	t = Clamp01(t)
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// Clamp01 limits t to [0, 1].
func Clamp01(t float64) float64 {
	switch {
	case t < 0 || math.IsNaN(t):
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// AlmostEqual reports whether a and b describe the same rotation within tol.
// q and -q are the same rotation.
func AlmostEqual(a, b quat.Number, tol float64) bool {
	return 1-math.Abs(dot(Normalize(a), Normalize(b))) <= tol
}
