// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFrameStoreApply(t *testing.T) {
	s := NewFrameStore(8)
	at := time.Unix(1700000000, 0)

	ok := s.Apply(Record{
		Index: 2,
		Acc:   r3.Vec{X: 0.10, Y: 0.20, Z: 0.30},
		Rot:   r3.Vec{X: 10, Y: 20, Z: 30},
	}, at)
	require.True(t, ok)

	f, ok := s.Frame(2)
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 0.10, Y: 0.20, Z: 0.30}, f.Acc)
	assert.Equal(t, r3.Vec{X: 10, Y: 20, Z: 30}, f.Rot)
	assert.Equal(t, at, f.Updated)
	assert.True(t, f.Seen())

	for i := 0; i < s.Len(); i++ {
		if i == 2 {
			continue
		}
		other, _ := s.Frame(i)
		assert.Equal(t, SensorFrame{Index: i}, other, "sensor %d must be untouched", i)
	}
}

func TestFrameStoreRejectsOutOfRange(t *testing.T) {
	s := NewFrameStore(4)
	before := s.Snapshot()

	for _, idx := range []int{-1, 4, 5, 1 << 20} {
		assert.False(t, s.Apply(Record{Index: idx, Acc: r3.Vec{X: 1}}, time.Now()), "index %d", idx)
	}
	assert.Equal(t, before, s.Snapshot())

	_, ok := s.Frame(4)
	assert.False(t, ok)
}

func TestFrameStoreSnapshotIsCopy(t *testing.T) {
	s := NewFrameStore(2)
	snap := s.Snapshot()
	snap[0].Acc = r3.Vec{X: 99}

	f, _ := s.Frame(0)
	assert.Equal(t, r3.Vec{}, f.Acc)
}
