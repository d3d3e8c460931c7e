/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Layout names a parametric arrangement shared by every bubble of a wave.
type Layout uint8

const (
	StackRight Layout = iota
	StackLeft
	HorizontalRight
	HorizontalLeft
	ArcOver
	ArcLeft
	ArcRight
	DiagonalUpRight
	DiagonalUpLeft
	LRightUp
	LUpRight
	LLeftUp
	LUpLeft
	Zigzag
	Staircase
	StaircaseLeft

	layoutCount
)

var layoutNames = [layoutCount]string{
	StackRight:      "stack-right",
	StackLeft:       "stack-left",
	HorizontalRight: "horizontal-right",
	HorizontalLeft:  "horizontal-left",
	ArcOver:         "arc-over",
	ArcLeft:         "arc-left",
	ArcRight:        "arc-right",
	DiagonalUpRight: "diagonal-up-right",
	DiagonalUpLeft:  "diagonal-up-left",
	LRightUp:        "L-right-up",
	LUpRight:        "L-up-right",
	LLeftUp:         "L-left-up",
	LUpLeft:         "L-up-left",
	Zigzag:          "zigzag",
	Staircase:       "staircase",
	StaircaseLeft:   "staircase-left",
}

// Layouts returns every pattern in declaration order.
func Layouts() []Layout {
	all := make([]Layout, layoutCount)
	for i := range all {
		all[i] = Layout(i)
	}
	return all
}

func (l Layout) String() string {
	if l >= layoutCount {
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
	return layoutNames[l]
}

func ParseLayout(name string) (Layout, error) {
	for i, n := range layoutNames {
		if n == name {
			return Layout(i), nil
		}
	}
	return 0, fmt.Errorf("unknown layout %q", name)
}

func (l Layout) MarshalText() ([]byte, error) {
	if l >= layoutCount {
		return nil, fmt.Errorf("unknown layout %d", uint8(l))
	}
	return []byte(layoutNames[l]), nil
}

func (l *Layout) UnmarshalText(b []byte) error {
	parsed, err := ParseLayout(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// PickLayout draws uniformly from all sixteen patterns.
func PickLayout(r *rand.Rand) Layout {
	return Layout(r.IntN(int(layoutCount)))
}

// Offset returns the candidate position of bubble index out of total, relative
// to the anchor: X is the bubble's horizontal centre, Y its bottom edge.
// Stacking patterns reverse the index so bubble 0 ends up on top.
func (l Layout) Offset(a Anchor, index, total int) Point {
	fh := a.FaceHeightPx
	if total < 1 {
		total = 1
	}

	var (
		clearance = math.Min(fh*1.15, 250)
		unit      = fh * 0.35
		gap       = fh * 0.20
		side      = fh * 0.60
		vstep     = fh * 0.45
		hstep     = 150.0

		i        = float64(index)
		reversed = float64(total - 1 - index)
		row      = vstep + gap
		progress = i / math.Max(float64(total-1), 1)
	)

	switch l {
	case StackRight:
		return Point{X: side, Y: -clearance - reversed*row}
	case StackLeft:
		return Point{X: -side, Y: -clearance - reversed*row}
	case HorizontalRight:
		return Point{X: i * hstep, Y: -clearance - i*unit*0.3}
	case HorizontalLeft:
		return Point{X: -i * hstep, Y: -clearance - i*unit*0.3}
	case ArcOver:
		centre := float64(total-1) / 2 * hstep
		return Point{X: i*hstep - centre, Y: -clearance - fh*0.6*math.Sin(progress*math.Pi)}
	case ArcLeft:
		return Point{X: -side - unit*0.4*math.Sin(progress*math.Pi), Y: -clearance - reversed*row}
	case ArcRight:
		return Point{X: side + unit*0.4*math.Sin(progress*math.Pi), Y: -clearance - reversed*row}
	case DiagonalUpRight:
		return Point{X: reversed * hstep * 0.6, Y: -clearance - reversed*row}
	case DiagonalUpLeft:
		return Point{X: -reversed * hstep * 0.6, Y: -clearance - reversed*row}
	case LRightUp, LLeftUp:
		dir := 1.0
		if l == LLeftUp {
			dir = -1
		}
		if index < 2 {
			return Point{X: dir * i * hstep, Y: -clearance - i*unit*0.2}
		}
		return Point{X: dir * hstep, Y: -clearance - unit - (i-1)*row}
	case LUpRight, LUpLeft:
		dir := 1.0
		if l == LUpLeft {
			dir = -1
		}
		if index < 2 {
			return Point{X: dir * side, Y: -clearance - i*row}
		}
		return Point{X: dir * (side + (i-1)*hstep), Y: -clearance - vstep}
	case Zigzag:
		x := unit
		if index%2 == 1 {
			x = -unit
		}
		return Point{X: x, Y: -clearance - reversed*row}
	case Staircase:
		return Point{X: reversed * hstep * 0.4, Y: -clearance - reversed*row}
	case StaircaseLeft:
		return Point{X: -reversed * hstep * 0.4, Y: -clearance - reversed*row}
	}

	return Point{X: 0, Y: -clearance - reversed*row}
}
