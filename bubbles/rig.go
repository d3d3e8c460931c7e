/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

var ErrNoJaw = errors.New("rig has no jaw joint")

const (
	jawJointName     = "jaw"
	headTopJointName = "headtop"
)

// Rig holds the rest-pose world positions of a character's tracked joints.
type Rig struct {
	Jaw     mgl64.Vec3
	HeadTop *mgl64.Vec3
}

func LoadRig(path string) (*Rig, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rig %s: %w", path, err)
	}

	rig, err := NewRig(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return rig, nil
}

// NewRig locates the jaw and head-top joints by case-insensitive node name and
// composes their transforms through every ancestor.
func NewRig(doc *gltf.Document) (*Rig, error) {
	parents := make(map[int]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			parents[int(c)] = i
		}
	}

	jaw, headTop := -1, -1
	for i, n := range doc.Nodes {
		if n == nil {
			continue
		}
		switch strings.ToLower(n.Name) {
		case jawJointName:
			if jaw < 0 {
				jaw = i
			}
		case headTopJointName:
			if headTop < 0 {
				headTop = i
			}
		}
	}

	if jaw < 0 {
		return nil, ErrNoJaw
	}

	rig := &Rig{Jaw: worldPosition(doc, parents, jaw)}
	if headTop >= 0 {
		p := worldPosition(doc, parents, headTop)
		rig.HeadTop = &p
	}

	return rig, nil
}

// Joints places the rig in the scene using the character's model matrix.
func (r *Rig) Joints(model mgl32.Mat4) Joints {
	j := Joints{Jaw: model.Mul4x1(vec32(r.Jaw).Vec4(1)).Vec3()}
	if r.HeadTop != nil {
		p := model.Mul4x1(vec32(*r.HeadTop).Vec4(1)).Vec3()
		j.HeadTop = &p
	}
	return j
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func worldPosition(doc *gltf.Document, parents map[int]int, node int) mgl64.Vec3 {
	world := mgl64.Ident4()

	seen := make(map[int]bool)
	for i, ok := node, true; ok && !seen[i]; i, ok = parents[i] {
		seen[i] = true
		world = localMatrix(doc.Nodes[i]).Mul4(world)
	}

	return world.Col(3).Vec3()
}

func localMatrix(n *gltf.Node) mgl64.Mat4 {
	if n == nil {
		return mgl64.Ident4()
	}

	m := mgl64.Mat4(n.Matrix)
	if m != (mgl64.Mat4{}) && m != mgl64.Ident4() {
		return m
	}

	rot := n.Rotation
	if rot == ([4]float64{}) {
		rot = [4]float64{0, 0, 0, 1}
	}
	scale := n.Scale
	if scale == ([3]float64{}) {
		scale = [3]float64{1, 1, 1}
	}

	q := mgl64.Quat{W: rot[3], V: mgl64.Vec3{rot[0], rot[1], rot[2]}}

	return mgl64.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2]).
		Mul4(q.Mat4()).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
}
