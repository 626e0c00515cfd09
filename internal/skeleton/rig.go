// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Humanoid bone names used by the default rig and the default BONE_MAP.
const (
	Hips          = "Hips"
	Spine         = "Spine"
	Chest         = "Chest"
	Head          = "Head"
	LeftHand      = "LeftHand"
	RightHand     = "RightHand"
	LeftUpperLeg  = "LeftUpperLeg"
	RightUpperLeg = "RightUpperLeg"
)

var identity = quat.Number{Real: 1}

// Rig is a headless bone hierarchy. World rotation of a bone is the root
// rotation composed with every local rotation from the top of its chain.
//
// Rig is not safe for concurrent use; it belongs to the tick path.
type Rig struct {
	names   []string
	parents []Bone
	local   []quat.Number
	byName  map[string]Bone
	root    Transform
}

// NewRig returns an empty rig with its root at the origin.
func NewRig() *Rig {
	return &Rig{
		byName: make(map[string]Bone),
		root:   Transform{Rotation: identity},
	}
}

// NewHumanoidRig builds the default costume topology:
// Hips -> Spine -> Chest -> {Head, LeftHand, RightHand}, Hips -> {LeftUpperLeg, RightUpperLeg}.
func NewHumanoidRig() *Rig {
	r := NewRig()
	hips := r.mustAdd(Hips, NoBone)
	spine := r.mustAdd(Spine, hips)
	chest := r.mustAdd(Chest, spine)
	r.mustAdd(Head, chest)
	r.mustAdd(LeftHand, chest)
	r.mustAdd(RightHand, chest)
	r.mustAdd(LeftUpperLeg, hips)
	r.mustAdd(RightUpperLeg, hips)
	return r
}

func (r *Rig) mustAdd(name string, parent Bone) Bone {
	b, err := r.AddBone(name, parent)
	if err != nil {
		panic(err)
	}
	return b
}

// AddBone appends a bone with an identity local rotation. Parents must be
// added before their children.
func (r *Rig) AddBone(name string, parent Bone) (Bone, error) {
	if name == "" {
		return NoBone, fmt.Errorf("bone name must not be empty")
	}
	if _, dup := r.byName[name]; dup {
		return NoBone, fmt.Errorf("bone %q already exists", name)
	}
	if parent != NoBone && !r.valid(parent) {
		return NoBone, fmt.Errorf("bone %q: unknown parent %d", name, parent)
	}
	b := Bone(len(r.names))
	r.names = append(r.names, name)
	r.parents = append(r.parents, parent)
	r.local = append(r.local, identity)
	r.byName[name] = b
	return b, nil
}

func (r *Rig) valid(b Bone) bool {
	return b >= 0 && int(b) < len(r.names)
}

// Bone implements BoneLookup.
func (r *Rig) Bone(name string) (Bone, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Name returns the bone's name, or "" for an unknown handle.
func (r *Rig) Name(b Bone) string {
	if !r.valid(b) {
		return ""
	}
	return r.names[b]
}

// Len returns the number of bones.
func (r *Rig) Len() int {
	return len(r.names)
}

func (r *Rig) Parent(b Bone) (Bone, bool) {
	if !r.valid(b) || r.parents[b] == NoBone {
		return NoBone, false
	}
	return r.parents[b], true
}

func (r *Rig) LocalRotation(b Bone) quat.Number {
	if !r.valid(b) {
		return identity
	}
	return r.local[b]
}

func (r *Rig) SetLocalRotation(b Bone, q quat.Number) {
	if !r.valid(b) {
		return
	}
	r.local[b] = q
}

func (r *Rig) WorldRotation(b Bone) quat.Number {
	if !r.valid(b) {
		return identity
	}
	q := r.local[b]
	for p := r.parents[b]; p != NoBone; p = r.parents[p] {
		q = quat.Mul(r.local[p], q)
	}
	return quat.Mul(r.root.Rotation, q)
}

func (r *Rig) Root() Transform {
	return r.root
}

func (r *Rig) TranslateRoot(delta r3.Vec) {
	r.root.Position = r3.Add(r.root.Position, delta)
}

// SetRootRotation sets the facing of the whole character.
func (r *Rig) SetRootRotation(q quat.Number) {
	r.root.Rotation = q
}

// Quat is the JSON form of a rotation.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuatOf converts a gonum quaternion for serialisation.
func QuatOf(q quat.Number) Quat {
	return Quat{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// BonePose is a bone's exported state.
type BonePose struct {
	Name  string `json:"name"`
	Local Quat   `json:"local"`
	World Quat   `json:"world"`
}

// Pose is an exported copy of the rig state, safe to hand to other goroutines.
type Pose struct {
	RootPosition r3.Vec     `json:"root_position"`
	RootRotation Quat       `json:"root_rotation"`
	Bones        []BonePose `json:"bones"`
}

// Pose exports the current rig state.
func (r *Rig) Pose() Pose {
	p := Pose{
		RootPosition: r.root.Position,
		RootRotation: QuatOf(r.root.Rotation),
		Bones:        make([]BonePose, len(r.names)),
	}
	for i, name := range r.names {
		b := Bone(i)
		p.Bones[i] = BonePose{
			Name:  name,
			Local: QuatOf(r.local[b]),
			World: QuatOf(r.WorldRotation(b)),
		}
	}
	return p
}
