// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Record is one decoded sample line from the costume: which sensor, its raw
// acceleration and its orientation as Euler angles in degrees.
type Record struct {
	Index int    `json:"index"`
	Acc   r3.Vec `json:"acc"` // accel, as reported by the firmware
	Rot   r3.Vec `json:"rot"` // euler degrees (x, y, z)
}

// SensorFrame is the latest known sample for one physical sensor.
type SensorFrame struct {
	Index   int       `json:"index"`
	Acc     r3.Vec    `json:"acc"`
	Rot     r3.Vec    `json:"rot"`
	Updated time.Time `json:"updated"` // zero until the first record arrives
}

// Seen reports whether the slot ever received a record.
func (f SensorFrame) Seen() bool {
	return !f.Updated.IsZero()
}

// RecordSource is anything that can hand decoded records to the tick path.
type RecordSource interface {
	Records() <-chan Record
}
