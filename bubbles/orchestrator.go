/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bubbles places speech bubbles around moving speakers without
// letting them collide with each other, with UI chrome, or with the screen
// edges, and schedules long utterances as staggered waves of short fragments.
package bubbles

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Seednode/bubblebox/internal/metrics"
)

var (
	ErrSpeakerBusy = errors.New("speaker is already speaking")
	ErrClosed      = errors.New("orchestrator is closed")
)

const (
	minBubbleWidth  = 250
	maxBubbleWidth  = 350
	minBubbleHeight = 70
	maxBubbleHeight = 220
	maxRotation     = 3
)

// Bubble is one revealed fragment. OffsetX is the horizontal centre and
// OffsetY the bottom edge, both relative to the owning speaker's anchor.
type Bubble struct {
	ID           uint64     `json:"id"`
	Text         string     `json:"text"`
	OffsetX      float64    `json:"offset_x"`
	OffsetY      float64    `json:"offset_y"`
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	Rotation     float64    `json:"rotation"`
	Scale        float64    `json:"scale"`
	BorderRadius [4]float64 `json:"border_radius"`
	Outcome      Outcome    `json:"outcome"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (b Bubble) size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

func (b Bubble) offset() Point {
	return Point{X: b.OffsetX, Y: b.OffsetY}
}

type PlacedBubble struct {
	Bubble
	AbsX float64 `json:"abs_x"`
	AbsY float64 `json:"abs_y"`
}

type SpeakerView struct {
	SpeakerID   string         `json:"speaker_id"`
	Anchor      Anchor         `json:"anchor"`
	Anchored    bool           `json:"anchored"`
	State       State          `json:"state"`
	Layout      Layout         `json:"layout"`
	TalkTrigger uint64         `json:"talk_trigger"`
	Bubbles     []PlacedBubble `json:"bubbles"`
}

type Option func(*Orchestrator)

func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) {
		o.rand = r
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithLayout forces every wave onto one pattern instead of a random draw.
func WithLayout(l Layout) Option {
	return func(o *Orchestrator) {
		o.forced = &l
	}
}

// WithOnChange registers a callback run after any change visible in a
// snapshot. It is never called with the orchestrator's lock held.
func WithOnChange(f func()) Option {
	return func(o *Orchestrator) {
		o.onChange = f
	}
}

type Orchestrator struct {
	cfg      Config
	clock    Clock
	rand     *rand.Rand
	log      zerolog.Logger
	forced   *Layout
	onChange func()
	resolver *Resolver

	mu       sync.Mutex
	closed   bool
	viewport Viewport
	chrome   []Obstacle
	speakers map[string]*speaker
	nextID   uint64
}

func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		clock:    realClock{},
		log:      zerolog.Nop(),
		speakers: make(map[string]*speaker),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	o.resolver = NewResolver(cfg, o.log)

	return o, nil
}

func (o *Orchestrator) notify() {
	if o.onChange != nil {
		o.onChange()
	}
}

func (o *Orchestrator) pickLayout() Layout {
	if o.forced != nil {
		return *o.forced
	}
	return PickLayout(o.rand)
}

func (o *Orchestrator) uniform(lo, hi float64) float64 {
	return lo + o.rand.Float64()*(hi-lo)
}

// newBubble draws the bubble's randomized appearance and sizes it to its text.
func (o *Orchestrator) newBubble(text string) Bubble {
	width := o.uniform(minBubbleWidth, maxBubbleWidth)

	perLine := int(math.Floor(width / 300 * 37))
	lines := int(math.Ceil(float64(utf8.RuneCountInString(text)) / float64(perLine)))
	height := min(max(float64(40+17*lines+10), minBubbleHeight), maxBubbleHeight)

	o.nextID++

	return Bubble{
		ID:       o.nextID,
		Text:     text,
		Width:    width,
		Height:   height,
		Rotation: o.uniform(-maxRotation, maxRotation),
		Scale:    o.uniform(0.95, 1.05),
		BorderRadius: [4]float64{
			o.uniform(18, 24),
			o.uniform(20, 28),
			o.uniform(16, 22),
			o.uniform(22, 28),
		},
		CreatedAt: o.clock.Now(),
	}
}

// obstacles collects everything the placing speaker must avoid: UI chrome,
// the screen top, its own jaw, and every other anchored speaker.
func (o *Orchestrator) obstacles(s *speaker) []Obstacle {
	obs := make([]Obstacle, 0, len(o.chrome)+2+len(o.speakers)*4)

	obs = append(obs, o.chrome...)
	obs = append(obs, topStrip(o.viewport, o.cfg.Margin))
	obs = append(obs, jawBox(s.anchor.Pixel(o.viewport), o.cfg.JawClearance))

	for _, id := range o.speakerIDs() {
		other := o.speakers[id]
		if other == s || !other.anchored {
			continue
		}

		p := other.anchor.Pixel(o.viewport)

		obs = append(obs, jawBox(p, o.cfg.JawClearance))
		for _, b := range other.bubbles {
			obs = append(obs, bubbleBox(p, b.offset(), b.size()))
		}
	}

	return obs
}

func (o *Orchestrator) speakerIDs() []string {
	ids := make([]string, 0, len(o.speakers))
	for id := range o.speakers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// place reveals one fragment. Speakers without an anchor, or scenes without a
// viewport, show nothing for the fragment.
func (o *Orchestrator) place(s *speaker, text string, index, total int) {
	if !s.anchored || !o.viewport.valid() {
		o.log.Debug().
			Str("speaker", s.id).
			Int("fragment", index).
			Msg("no anchor for speaker, skipping bubble")
		return
	}

	b := o.newBubble(text)
	anchor := s.anchor.Pixel(o.viewport)

	siblings := make([]Obstacle, 0, len(s.bubbles))
	for _, prev := range s.bubbles {
		siblings = append(siblings, bubbleBox(anchor, prev.offset(), prev.size()))
	}

	in := PlaceInput{
		Viewport:  o.viewport,
		Anchor:    anchor,
		Candidate: s.layout.Offset(s.anchor, index, total),
		Carry:     s.carry,
		Size:      b.size(),
		Siblings:  siblings,
		Obstacles: o.obstacles(s),
	}

	p := o.resolver.Place(in)
	off := o.resolver.Clamp(in, p.Offset)

	b.OffsetX, b.OffsetY = off.X, off.Y
	b.Outcome = p.Outcome

	s.carry = p.Carry
	s.bubbles = append(s.bubbles, b)
	s.talk++

	metrics.Placements.WithLabelValues(p.Outcome.String()).Inc()

	o.log.Debug().
		Str("speaker", s.id).
		Uint64("bubble", b.ID).
		Stringer("layout", s.layout).
		Stringer("outcome", p.Outcome).
		Float64("x", b.OffsetX).
		Float64("y", b.OffsetY).
		Msg("placed bubble")
}

func (o *Orchestrator) lookup(id string) *speaker {
	s, ok := o.speakers[id]
	if !ok {
		s = &speaker{id: id}
		o.speakers[id] = s
	}
	return s
}

func (o *Orchestrator) SetViewport(v Viewport) {
	o.mu.Lock()
	if o.closed || v == o.viewport {
		o.mu.Unlock()
		return
	}
	o.viewport = v
	o.mu.Unlock()

	o.notify()
}

// SetChrome replaces the fixed UI regions bubbles must stay clear of.
func (o *Orchestrator) SetChrome(regions []Rect) {
	chrome := make([]Obstacle, 0, len(regions))
	for _, r := range regions {
		if r.Width <= 0 || r.Height <= 0 {
			continue
		}
		chrome = append(chrome, r.Obstacle())
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.chrome = chrome
}

// UpdateAnchor records a speaker's position for the current frame. Invalid
// anchors are dropped and the previous one is kept.
func (o *Orchestrator) UpdateAnchor(id string, a Anchor) {
	if !a.valid() {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	s := o.lookup(id)
	s.anchor = a
	s.anchored = true
}

func (o *Orchestrator) RemoveSpeaker(id string) {
	o.mu.Lock()

	s, ok := o.speakers[id]
	if o.closed || !ok {
		o.mu.Unlock()
		return
	}

	o.cancel(s)
	delete(o.speakers, id)

	o.mu.Unlock()

	o.notify()
}

// Speak starts a new utterance. The speaker's previous bubbles are cleared
// and the first fragment is placed before Speak returns. A speaker that is
// still mid-utterance rejects the call with ErrSpeakerBusy.
func (o *Orchestrator) Speak(id, text string) error {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}

	s := o.lookup(id)
	if s.state == Speaking {
		o.mu.Unlock()

		metrics.RejectedSpeaks.Inc()
		o.log.Debug().Str("speaker", id).Msg("rejected speak while speaking")

		return fmt.Errorf("%w: %s", ErrSpeakerBusy, id)
	}

	o.cancel(s)

	s.waves = GroupWaves(SplitFragments(text, o.cfg.MaxFragment, o.cfg.MinFragment), o.cfg.WaveSize)
	s.wave = 0
	s.state = Speaking

	startWave(o, s)

	o.mu.Unlock()

	o.notify()

	return nil
}

// Idle reports whether the speaker can accept a new utterance. Unknown
// speakers are idle.
func (o *Orchestrator) Idle(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.speakers[id]
	return !ok || s.state == Idle
}

func (o *Orchestrator) Bubbles(id string) []Bubble {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.speakers[id]
	if !ok {
		return nil
	}

	return append([]Bubble(nil), s.bubbles...)
}

func (o *Orchestrator) TalkTrigger(id string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.speakers[id]; ok {
		return s.talk
	}
	return 0
}

func (o *Orchestrator) Viewport() Viewport {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.viewport
}

// Snapshot returns every speaker's state and bubbles, sorted by speaker id.
// Absolute positions are left at zero for unanchored speakers.
func (o *Orchestrator) Snapshot() []SpeakerView {
	_, views := o.ViewportSnapshot()
	return views
}

// ViewportSnapshot returns the viewport together with the snapshot computed
// against it, both read under one lock.
func (o *Orchestrator) ViewportSnapshot() (Viewport, []SpeakerView) {
	o.mu.Lock()
	defer o.mu.Unlock()

	views := make([]SpeakerView, 0, len(o.speakers))
	for _, id := range o.speakerIDs() {
		s := o.speakers[id]

		view := SpeakerView{
			SpeakerID:   id,
			Anchor:      s.anchor,
			Anchored:    s.anchored,
			State:       s.state,
			Layout:      s.layout,
			TalkTrigger: s.talk,
			Bubbles:     make([]PlacedBubble, 0, len(s.bubbles)),
		}

		var origin Point
		if s.anchored {
			origin = s.anchor.Pixel(o.viewport)
		}

		for _, b := range s.bubbles {
			pb := PlacedBubble{Bubble: b}
			if s.anchored {
				pb.AbsX = origin.X + b.OffsetX
				pb.AbsY = origin.Y + b.OffsetY
			}
			view.Bubbles = append(view.Bubbles, pb)
		}

		views = append(views, view)
	}

	return o.viewport, views
}

// Close stops every pending timer. The orchestrator accepts no further work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	for _, s := range o.speakers {
		o.cancel(s)
	}
	o.closed = true
}
