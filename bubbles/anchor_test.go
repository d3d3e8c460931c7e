/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() Tracker {
	return Tracker{
		Camera: NewCamera(
			mgl32.Vec3{0, 0, 5},
			mgl32.Vec3{0, 0, 0},
			mgl32.Vec3{0, 1, 0},
			60, 1600.0/900.0, 0.1, 100,
		),
		Viewport: Viewport{Width: 1600, Height: 900},
	}
}

func TestTrackCentre(t *testing.T) {
	tr := newTestTracker()

	a, ok := tr.Track(Joints{Jaw: mgl32.Vec3{0, 0, 0}})
	require.True(t, ok)

	assert.InDelta(t, 50, a.XPct, 1e-3)
	assert.InDelta(t, 50, a.YPct, 1e-3)
	assert.InDelta(t, 20, a.HeadTopYPct, 1e-3)
	assert.InDelta(t, 270, a.FaceHeightPx, 1e-3)
}

func TestTrackHeadTop(t *testing.T) {
	tr := newTestTracker()
	head := mgl32.Vec3{0, 1, 0}

	a, ok := tr.Track(Joints{Jaw: mgl32.Vec3{0, 0, 0}, HeadTop: &head})
	require.True(t, ok)

	assert.Less(t, a.HeadTopYPct, a.YPct)
	assert.Greater(t, a.FaceHeightPx, 0.0)
	assert.InDelta(t, (a.YPct-a.HeadTopYPct)/100*900, a.FaceHeightPx, 1e-2)
}

func TestTrackBehindCamera(t *testing.T) {
	tr := newTestTracker()

	_, ok := tr.Track(Joints{Jaw: mgl32.Vec3{0, 0, 10}})
	assert.False(t, ok)
}

func TestTrackHeadTopBehindCameraFallsBack(t *testing.T) {
	tr := newTestTracker()
	head := mgl32.Vec3{0, 1, 10}

	a, ok := tr.Track(Joints{Jaw: mgl32.Vec3{0, 0, 0}, HeadTop: &head})
	require.True(t, ok)

	assert.InDelta(t, a.YPct-30, a.HeadTopYPct, 1e-9)
	assert.InDelta(t, 270, a.FaceHeightPx, 1e-9)
}

func TestTrackWithoutViewport(t *testing.T) {
	tr := newTestTracker()
	tr.Viewport = Viewport{}

	_, ok := tr.Track(Joints{})
	assert.False(t, ok)
}

func TestAnchorPixel(t *testing.T) {
	a := Anchor{XPct: 25, YPct: 75, FaceHeightPx: 100}

	assert.Equal(t, Point{X: 400, Y: 675}, a.Pixel(Viewport{Width: 1600, Height: 900}))
	assert.True(t, a.valid())
	assert.False(t, Anchor{XPct: 25, YPct: 75}.valid())
}
