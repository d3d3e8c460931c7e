/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Anchor is a speaker's per-frame screen position. Percentages are of the
// viewport; FaceHeightPx is the scale unit every layout distance derives from.
type Anchor struct {
	XPct         float64 `json:"x_pct"`
	YPct         float64 `json:"y_pct"`
	HeadTopYPct  float64 `json:"head_top_y_pct"`
	FaceHeightPx float64 `json:"face_height_px"`
}

func (a Anchor) valid() bool {
	for _, v := range []float64{a.XPct, a.YPct, a.HeadTopYPct, a.FaceHeightPx} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return a.FaceHeightPx > 0
}

// Pixel converts the anchor into absolute viewport pixels.
func (a Anchor) Pixel(v Viewport) Point {
	return Point{
		X: a.XPct / 100 * v.Width,
		Y: a.YPct / 100 * v.Height,
	}
}

type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

func NewCamera(eye, target, up mgl32.Vec3, fovDeg, aspect, near, far float32) Camera {
	return Camera{
		View:       mgl32.LookAtV(eye, target, up),
		Projection: mgl32.Perspective(mgl32.DegToRad(fovDeg), aspect, near, far),
	}
}

// Joints are the tracked skeletal points of one character in world space.
// HeadTop is optional.
type Joints struct {
	Jaw     mgl32.Vec3
	HeadTop *mgl32.Vec3
}

// Tracker projects tracked joints into anchors once per rendered frame.
type Tracker struct {
	Camera   Camera
	Viewport Viewport
}

// project returns the pixel position of a world point, or false when the
// point is behind the camera.
func (t Tracker) project(p mgl32.Vec3) (float64, float64, bool) {
	clip := t.Camera.Projection.Mul4(t.Camera.View).Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, false
	}

	ndcX := float64(clip.X() / clip.W())
	ndcY := float64(clip.Y() / clip.W())

	return (ndcX + 1) / 2 * t.Viewport.Width, (1 - ndcY) / 2 * t.Viewport.Height, true
}

// Track emits the anchor for one character. Nothing is emitted while the
// viewport is unknown or the jaw is behind the camera.
func (t Tracker) Track(j Joints) (Anchor, bool) {
	if !t.Viewport.valid() {
		return Anchor{}, false
	}

	jawX, jawY, ok := t.project(j.Jaw)
	if !ok {
		return Anchor{}, false
	}

	a := Anchor{
		XPct:         jawX / t.Viewport.Width * 100,
		YPct:         jawY / t.Viewport.Height * 100,
		FaceHeightPx: t.Viewport.Height * 0.3,
	}
	a.HeadTopYPct = a.YPct - 30

	if j.HeadTop != nil {
		if _, headY, ok := t.project(*j.HeadTop); ok {
			a.HeadTopYPct = headY / t.Viewport.Height * 100
			a.FaceHeightPx = math.Abs(jawY - headY)
		}
	}

	// Degenerate projections collapse to zero height; keep the fallback scale.
	if a.FaceHeightPx <= 0 {
		a.FaceHeightPx = t.Viewport.Height * 0.3
	}

	return a, true
}
