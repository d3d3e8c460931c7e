/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"fmt"
	"time"
)

type State uint8

const (
	Idle State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "speaking":
		*s = Speaking
	default:
		return fmt.Errorf("unknown speaker state %q", text)
	}
	return nil
}

type speaker struct {
	id       string
	anchor   Anchor
	anchored bool

	state  State
	layout Layout
	waves  [][]string
	wave   int
	next   int
	carry  Point

	bubbles []Bubble
	talk    uint64

	// A speaker owns at most one pending timer. Bumping gen invalidates
	// any callback that was already in flight when the timer was stopped.
	timer Timer
	gen   uint64
}

func (s *speaker) fragments() []string {
	if s.wave >= len(s.waves) {
		return nil
	}
	return s.waves[s.wave]
}

// step is one transition of a speaker's schedule, run with the lock held.
type step func(*Orchestrator, *speaker)

func (o *Orchestrator) cancel(s *speaker) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (o *Orchestrator) schedule(s *speaker, d time.Duration, next step) {
	o.cancel(s)

	gen, id := s.gen, s.id
	s.timer = o.clock.AfterFunc(d, func() {
		o.fire(id, gen, next)
	})
}

func (o *Orchestrator) fire(id string, gen uint64, next step) {
	o.mu.Lock()

	s, ok := o.speakers[id]
	if o.closed || !ok || s.gen != gen {
		o.mu.Unlock()
		return
	}

	s.timer = nil
	next(o, s)

	o.mu.Unlock()

	o.notify()
}

// startWave clears the speaker's bubbles, locks a layout for the wave and
// reveals its first fragment immediately.
func startWave(o *Orchestrator, s *speaker) {
	s.bubbles = nil
	s.carry = Point{}
	s.next = 0
	s.layout = o.pickLayout()

	o.log.Debug().
		Str("speaker", s.id).
		Int("wave", s.wave).
		Int("fragments", len(s.fragments())).
		Stringer("layout", s.layout).
		Msg("starting wave")

	reveal(o, s)
}

func reveal(o *Orchestrator, s *speaker) {
	fragments := s.fragments()

	o.place(s, fragments[s.next], s.next, len(fragments))
	s.next++

	if s.next < len(fragments) {
		o.schedule(s, o.cfg.Stagger, reveal)
		return
	}

	o.schedule(s, o.cfg.WaveDwell, advance)
}

func advance(o *Orchestrator, s *speaker) {
	s.wave++
	if s.wave < len(s.waves) {
		startWave(o, s)
		return
	}

	s.state = Idle
	s.waves = nil
	s.wave = 0
	s.next = 0

	o.log.Debug().Str("speaker", s.id).Msg("speaker idle")

	if o.cfg.Linger > 0 && len(s.bubbles) > 0 {
		o.schedule(s, o.cfg.Linger, expire)
	}
}

func expire(_ *Orchestrator, s *speaker) {
	s.bubbles = nil
	s.carry = Point{}
}
