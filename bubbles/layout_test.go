/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutNamesRoundTrip(t *testing.T) {
	all := Layouts()
	require.Len(t, all, 16)

	for _, l := range all {
		parsed, err := ParseLayout(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)

		text, err := l.MarshalText()
		require.NoError(t, err)

		var decoded Layout
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, l, decoded)
	}

	_, err := ParseLayout("spiral")
	assert.Error(t, err)
}

func TestLayoutOffsetIsPure(t *testing.T) {
	a := Anchor{XPct: 40, YPct: 70, HeadTopYPct: 50, FaceHeightPx: 180}

	for _, l := range Layouts() {
		for i := range 3 {
			assert.Equal(t, l.Offset(a, i, 3), l.Offset(a, i, 3), "%s index %d", l, i)
		}
	}
}

func TestStackRightSpacing(t *testing.T) {
	a := Anchor{XPct: 50, YPct: 50, HeadTopYPct: 30, FaceHeightPx: 200}

	offsets := []Point{
		StackRight.Offset(a, 0, 3),
		StackRight.Offset(a, 1, 3),
		StackRight.Offset(a, 2, 3),
	}

	for i, p := range offsets {
		assert.InDelta(t, 120, p.X, 1e-9, "index %d", i)
	}

	assert.InDelta(t, -490, offsets[0].Y, 1e-9)
	assert.InDelta(t, -360, offsets[1].Y, 1e-9)
	assert.InDelta(t, -230, offsets[2].Y, 1e-9)
}

func TestStackingPatternsPutFirstBubbleOnTop(t *testing.T) {
	a := Anchor{XPct: 50, YPct: 80, HeadTopYPct: 60, FaceHeightPx: 160}

	stacking := []Layout{
		StackRight, StackLeft, ArcLeft, ArcRight,
		DiagonalUpRight, DiagonalUpLeft, Zigzag, Staircase, StaircaseLeft,
	}

	for _, l := range stacking {
		first := l.Offset(a, 0, 3)
		last := l.Offset(a, 2, 3)
		assert.Less(t, first.Y, last.Y, l.String())
	}
}

func TestClearanceIsCapped(t *testing.T) {
	a := Anchor{FaceHeightPx: 1000}

	assert.InDelta(t, -250, HorizontalRight.Offset(a, 0, 1).Y, 1e-9)
}

func TestLShapesTurn(t *testing.T) {
	a := Anchor{FaceHeightPx: 200}

	tests := []struct {
		layout Layout
		want   Point
	}{
		{LRightUp, Point{X: 150, Y: -230 - 70 - 130}},
		{LLeftUp, Point{X: -150, Y: -230 - 70 - 130}},
		{LUpRight, Point{X: 120 + 150, Y: -230 - 90}},
		{LUpLeft, Point{X: -(120 + 150), Y: -230 - 90}},
	}

	for _, tt := range tests {
		got := tt.layout.Offset(a, 2, 3)
		assert.InDelta(t, tt.want.X, got.X, 1e-9, tt.layout.String())
		assert.InDelta(t, tt.want.Y, got.Y, 1e-9, tt.layout.String())
	}
}

func TestPickLayoutCoversAllPatterns(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	seen := make(map[Layout]bool)
	for range 2000 {
		seen[PickLayout(r)] = true
	}

	assert.Len(t, seen, 16)
}
