// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package skeleton defines the minimal capability surface the fusion core
// needs from an animation host, plus a headless in-memory rig.
package skeleton

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Bone is an opaque handle into a skeleton.
type Bone int

// NoBone marks an unbound slot or a missing parent.
const NoBone Bone = -1

// Transform is a position plus rotation.
type Transform struct {
	Position r3.Vec
	Rotation quat.Number
}

// Skeleton is what the fusion core reads and writes. Implementations wrap
// whatever host renders the character.
type Skeleton interface {
	// WorldRotation returns the bone's rotation in world space.
	WorldRotation(b Bone) quat.Number
	// Parent returns the bone's parent, or false for a top-level bone.
	Parent(b Bone) (Bone, bool)
	LocalRotation(b Bone) quat.Number
	SetLocalRotation(b Bone, q quat.Number)
	// Root returns the character's root transform.
	Root() Transform
	// TranslateRoot moves the root by delta, in world space.
	TranslateRoot(delta r3.Vec)
}

// BoneLookup resolves bone names to handles.
type BoneLookup interface {
	Bone(name string) (Bone, bool)
}

// Binding maps sensor indices to bones. It is sparse and immutable once built.
type Binding struct {
	bones []Bone
}

// BindBones builds a Binding for n sensors from explicit bone handles.
func BindBones(n int, bones map[int]Bone) (Binding, error) {
	if n < 0 {
		return Binding{}, fmt.Errorf("sensor count must not be negative, got %d", n)
	}
	b := Binding{bones: make([]Bone, n)}
	for i := range b.bones {
		b.bones[i] = NoBone
	}
	for idx, bone := range bones {
		if idx < 0 || idx >= n {
			return Binding{}, fmt.Errorf("sensor index %d out of range [0,%d)", idx, n)
		}
		b.bones[idx] = bone
	}
	return b, nil
}

// NewBinding resolves a sensor-index to bone-name mapping against a rig.
func NewBinding(n int, mapping map[int]string, rig BoneLookup) (Binding, error) {
	bones := make(map[int]Bone, len(mapping))

	// sorted so the first reported error is deterministic
	idxs := make([]int, 0, len(mapping))
	for idx := range mapping {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	for _, idx := range idxs {
		name := mapping[idx]
		bone, ok := rig.Bone(name)
		if !ok {
			return Binding{}, fmt.Errorf("sensor %d: bone %q not found in rig", idx, name)
		}
		bones[idx] = bone
	}
	return BindBones(n, bones)
}

// Bone returns the bone bound to sensor i.
func (b Binding) Bone(i int) (Bone, bool) {
	if i < 0 || i >= len(b.bones) || b.bones[i] == NoBone {
		return NoBone, false
	}
	return b.bones[i], true
}

// Sensors returns the sensor count the binding was built for.
func (b Binding) Sensors() int {
	return len(b.bones)
}

// Bound returns how many sensors have a bone.
func (b Binding) Bound() int {
	n := 0
	for _, bone := range b.bones {
		if bone != NoBone {
			n++
		}
	}
	return n
}
