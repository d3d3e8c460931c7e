/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Seednode/bubblebox/internal/metrics"
)

// Outcome records how the resolver arrived at a bubble's final position.
type Outcome uint8

const (
	OutcomeDirect Outcome = iota
	OutcomeNudged
	OutcomeSpiral
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDirect:
		return "direct"
	case OutcomeNudged:
		return "nudged"
	case OutcomeSpiral:
		return "spiral"
	case OutcomeExhausted:
		return "exhausted"
	}
	return "unknown"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, c := range []Outcome{OutcomeDirect, OutcomeNudged, OutcomeSpiral, OutcomeExhausted} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown placement outcome %q", text)
}

// compass order for spiral rings: up, up-right, right, down-right, down,
// down-left, left, up-left.
var compass = [8]Point{
	{X: 0, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
}

type Resolver struct {
	cfg Config
	log zerolog.Logger
}

func NewResolver(cfg Config, log zerolog.Logger) *Resolver {
	return &Resolver{cfg: cfg, log: log}
}

// PlaceInput describes one bubble to place. Anchor is in absolute pixels;
// Candidate and Carry are anchor-relative.
type PlaceInput struct {
	Viewport  Viewport
	Anchor    Point
	Candidate Point
	Carry     Point
	Size      Size
	Siblings  []Obstacle
	Obstacles []Obstacle
}

type Placement struct {
	Offset  Point
	Carry   Point
	Outcome Outcome
}

func (r *Resolver) box(in PlaceInput, off Point) Obstacle {
	return bubbleBox(in.Anchor, off, in.Size)
}

func (r *Resolver) collides(in PlaceInput, off Point) bool {
	box := r.box(in, off)

	for _, s := range in.Siblings {
		if box.Overlaps(s, r.cfg.Gap) {
			return true
		}
	}
	for _, o := range in.Obstacles {
		if box.Overlaps(o, r.cfg.Gap) {
			return true
		}
	}

	return false
}

func (r *Resolver) fits(in PlaceInput, off Point) bool {
	return r.box(in, off).Within(in.Viewport, r.cfg.Margin) && !r.collides(in, off)
}

// nudge pushes the bubble out of each obstacle it touches along the axis of
// least overlap. Every push is also added to the wave's carried offset.
func (r *Resolver) nudge(in PlaceInput, off, carry Point) (Point, Point, bool) {
	moved := false

	for _, o := range in.Obstacles {
		box := r.box(in, off)

		ox, oy := box.penetration(o, r.cfg.Gap)
		if ox <= 0 || oy <= 0 {
			continue
		}

		var push Point
		if ox < oy {
			push.X = ox + r.cfg.NudgePadding
			if box.CenterX <= o.CenterX {
				push.X = -push.X
			}
		} else {
			push.Y = oy + r.cfg.NudgePadding
			if box.CenterY <= o.CenterY {
				push.Y = -push.Y
			}
		}

		off = off.Add(push)
		carry = carry.Add(push)
		moved = true
	}

	return off, carry, moved
}

func (r *Resolver) clampEdges(in PlaceInput, off Point, top bool) Point {
	m := r.cfg.Margin
	w, h := in.Size.Width, in.Size.Height

	if in.Anchor.X+off.X-w/2 < m {
		off.X = m - in.Anchor.X + w/2
	}
	if in.Anchor.X+off.X+w/2 > in.Viewport.Width-m {
		off.X = in.Viewport.Width - m - in.Anchor.X - w/2
	}
	if top && in.Anchor.Y+off.Y-h < m {
		off.Y = m - in.Anchor.Y + h
	}
	if in.Anchor.Y+off.Y > in.Viewport.Height-m {
		off.Y = in.Viewport.Height - m - in.Anchor.Y
	}

	return off
}

// Clamp pulls a resolved bubble back across the left, right and bottom edges.
// The top edge is covered by the screen-top obstacle.
func (r *Resolver) Clamp(in PlaceInput, off Point) Point {
	return r.clampEdges(in, off, false)
}

func (r *Resolver) spiral(in PlaceInput, start Point) (Point, float64, bool) {
	for radius := r.cfg.SpiralStep; radius < r.cfg.SpiralRadius; radius += r.cfg.SpiralStep {
		for _, d := range compass {
			p := Point{X: start.X + d.X*radius, Y: start.Y + d.Y*radius}
			if r.fits(in, p) {
				return p, radius, true
			}
		}
	}

	return start, 0, false
}

// Place resolves a single bubble against its already-placed siblings and the
// obstacle set. It never fails: when spiral search runs out of radius the
// start position is kept and the condition is logged.
func (r *Resolver) Place(in PlaceInput) Placement {
	off := in.Candidate.Add(in.Carry)

	off, carry, moved := r.nudge(in, off, in.Carry)

	clamped := r.clampEdges(in, off, true)
	if clamped != off {
		moved = true
	}
	off = clamped

	if r.fits(in, off) {
		outcome := OutcomeDirect
		if moved {
			outcome = OutcomeNudged
		}
		return Placement{Offset: off, Carry: carry, Outcome: outcome}
	}

	found, radius, ok := r.spiral(in, off)
	if !ok {
		r.log.Warn().
			Float64("x", off.X).
			Float64("y", off.Y).
			Float64("radius", r.cfg.SpiralRadius).
			Msg("no free position for bubble, keeping start position")

		return Placement{Offset: off, Carry: carry, Outcome: OutcomeExhausted}
	}

	metrics.SpiralRadius.Observe(radius)
	r.log.Debug().
		Float64("x", found.X).
		Float64("y", found.Y).
		Float64("radius", radius).
		Msg("spiral search found free position")

	return Placement{Offset: found, Carry: carry, Outcome: OutcomeSpiral}
}

// Resolve places a whole wave in index order, each bubble checked only
// against the ones resolved before it, then runs the final boundary pass.
func (r *Resolver) Resolve(v Viewport, anchor Point, candidates []Point, sizes []Size, obstacles []Obstacle) []Placement {
	placements := make([]Placement, len(candidates))
	siblings := make([]Obstacle, 0, len(candidates))

	var carry Point
	for i, c := range candidates {
		in := PlaceInput{
			Viewport:  v,
			Anchor:    anchor,
			Candidate: c,
			Carry:     carry,
			Size:      sizes[i],
			Siblings:  siblings,
			Obstacles: obstacles,
		}

		p := r.Place(in)
		placements[i] = p
		carry = p.Carry
		siblings = append(siblings, bubbleBox(anchor, p.Offset, sizes[i]))
	}

	for i := range placements {
		placements[i].Offset = r.Clamp(PlaceInput{Viewport: v, Anchor: anchor, Size: sizes[i]}, placements[i].Offset)
	}

	return placements
}
