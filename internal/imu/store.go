// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"time"
)

// FrameStore is the latest-known-value table, one slot per sensor index.
// The size is fixed at construction.
//
// FrameStore is not safe for concurrent use: it is owned by the tick path,
// which is its only writer. Observers get copies via Snapshot.
type FrameStore struct {
	frames []SensorFrame
}

// NewFrameStore allocates a table for n sensors, indices [0, n).
func NewFrameStore(n int) *FrameStore {
	if n < 0 {
		n = 0
	}
	frames := make([]SensorFrame, n)
	for i := range frames {
		frames[i].Index = i
	}
	return &FrameStore{frames: frames}
}

// Len returns the number of sensor slots.
func (s *FrameStore) Len() int {
	return len(s.frames)
}

// Valid reports whether i addresses a slot.
func (s *FrameStore) Valid(i int) bool {
	return i >= 0 && i < len(s.frames)
}

// Apply stores r in its slot. Records addressed outside the table are
// rejected and leave the store unchanged.
func (s *FrameStore) Apply(r Record, at time.Time) bool {
	if !s.Valid(r.Index) {
		return false
	}
	f := &s.frames[r.Index]
	f.Acc = r.Acc
	f.Rot = r.Rot
	f.Updated = at
	return true
}

// Frame returns the slot for sensor i.
func (s *FrameStore) Frame(i int) (SensorFrame, bool) {
	if !s.Valid(i) {
		return SensorFrame{}, false
	}
	return s.frames[i], true
}

// Snapshot returns a copy of every slot.
func (s *FrameStore) Snapshot() []SensorFrame {
	out := make([]SensorFrame, len(s.frames))
	copy(out, s.frames)
	return out
}
