/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (v Viewport) valid() bool {
	return v.Width > 0 && v.Height > 0 && !math.IsInf(v.Width, 0) && !math.IsInf(v.Height, 0)
}

// Rect is a host-supplied UI region (buttons, side panels) in top-left form.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Obstacle() Obstacle {
	return Obstacle{
		CenterX:    r.X + r.Width/2,
		CenterY:    r.Y + r.Height/2,
		HalfWidth:  r.Width / 2,
		HalfHeight: r.Height / 2,
	}
}

// Obstacle is an axis-aligned bounding box in absolute screen pixels.
type Obstacle struct {
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	HalfWidth  float64 `json:"half_width"`
	HalfHeight float64 `json:"half_height"`
}

func (o Obstacle) Left() float64   { return o.CenterX - o.HalfWidth }
func (o Obstacle) Right() float64  { return o.CenterX + o.HalfWidth }
func (o Obstacle) Top() float64    { return o.CenterY - o.HalfHeight }
func (o Obstacle) Bottom() float64 { return o.CenterY + o.HalfHeight }

// penetration returns how far the boxes overlap on each axis once both are
// inflated by gap. Both values must be positive for an intersection.
func (o Obstacle) penetration(other Obstacle, gap float64) (float64, float64) {
	ox := o.HalfWidth + other.HalfWidth + gap - math.Abs(o.CenterX-other.CenterX)
	oy := o.HalfHeight + other.HalfHeight + gap - math.Abs(o.CenterY-other.CenterY)
	return ox, oy
}

func (o Obstacle) Overlaps(other Obstacle, gap float64) bool {
	ox, oy := o.penetration(other, gap)
	return ox > 0 && oy > 0
}

// Within reports whether the box lies inside the viewport shrunk by margin.
func (o Obstacle) Within(v Viewport, margin float64) bool {
	return o.Left() >= margin && o.Right() <= v.Width-margin &&
		o.Top() >= margin && o.Bottom() <= v.Height-margin
}

// bubbleBox converts an anchor-relative bubble offset into an absolute box.
// The offset's Y is the bubble's bottom edge; the bubble grows upward.
func bubbleBox(anchor, offset Point, size Size) Obstacle {
	return Obstacle{
		CenterX:    anchor.X + offset.X,
		CenterY:    anchor.Y + offset.Y - size.Height/2,
		HalfWidth:  size.Width / 2,
		HalfHeight: size.Height / 2,
	}
}

func jawBox(anchor Point, half float64) Obstacle {
	return Obstacle{
		CenterX:    anchor.X,
		CenterY:    anchor.Y,
		HalfWidth:  half,
		HalfHeight: half,
	}
}

// topStrip keeps bubbles from drifting off the top edge of the screen.
func topStrip(v Viewport, margin float64) Obstacle {
	return Obstacle{
		CenterX:    v.Width / 2,
		CenterY:    -500,
		HalfWidth:  v.Width / 2,
		HalfHeight: 500 + margin,
	}
}
