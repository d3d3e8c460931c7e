/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Seednode/bubblebox/bubbles"
)

const (
	cellWidth  = 8
	cellHeight = 16
	frameRate  = 50 * time.Millisecond
)

var previewLines = []string{
	"Somebody left the fridge door open again! Who keeps eating all of my yogurt cups?",
	"Not me. I have been scrubbing this oven since breakfast, and it is still not clean.",
	"The kettle is whistling. Can someone please take it off the stove before it melts?",
	"I am putting a lock on that shelf tonight, and nobody gets a key.",
}

type previewSpeaker struct {
	id    string
	x     float32
	phase float64
	style tcell.Style
}

// lastLine keeps the most recent log line for the status bar.
type lastLine struct {
	mu   sync.Mutex
	line string
}

func (l *lastLine) Write(p []byte) (int, error) {
	l.mu.Lock()
	l.line = strings.TrimSpace(string(p))
	l.mu.Unlock()

	return len(p), nil
}

func (l *lastLine) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.line
}

type preview struct {
	screen   tcell.Screen
	engine   *bubbles.Orchestrator
	rig      *bubbles.Rig
	speakers []previewSpeaker
	status   *lastLine
	started  time.Time

	tracker bubbles.Tracker
	next    int
}

func newPreviewCmd(cfg *Config) *cobra.Command {
	var rigPath string

	cmd := &cobra.Command{
		Use:   "preview [text...]",
		Short: "Preview bubble layouts for two speakers in the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.engine.Validate(); err != nil {
				return err
			}

			rig := &bubbles.Rig{Jaw: mgl64.Vec3{0, 1.4, 0}}
			head := mgl64.Vec3{0, 1.75, 0}
			rig.HeadTop = &head

			if rigPath != "" {
				var err error
				rig, err = bubbles.LoadRig(rigPath)
				if err != nil {
					return err
				}
			}

			return runPreview(cmd.Context(), cfg, rig, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&rigPath, "rig", "", "glTF character whose jaw and headtop joints drive the anchors")

	return cmd
}

func runPreview(ctx context.Context, cfg *Config, rig *bubbles.Rig, text string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}

	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	status := &lastLine{}

	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:          status,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).Level(level)

	engine, err := bubbles.New(cfg.engine, bubbles.WithLogger(log))
	if err != nil {
		return err
	}
	defer engine.Close()

	p := &preview{
		screen: screen,
		engine: engine,
		rig:    rig,
		status: status,
		speakers: []previewSpeaker{
			{id: "chef", x: -0.7, phase: 0, style: tcell.StyleDefault.Foreground(tcell.ColorGreen)},
			{id: "maid", x: 0.7, phase: math.Pi / 2, style: tcell.StyleDefault.Foreground(tcell.ColorBlue)},
		},
		started: time.Now(),
	}

	p.resize()
	p.updateAnchors()

	if text != "" {
		_ = engine.Speak(p.speakers[0].id, text)
	} else {
		p.speakNext()
	}

	return p.run(ctx)
}

func (p *preview) resize() {
	w, h := p.screen.Size()

	v := bubbles.Viewport{
		Width:  float64(w * cellWidth),
		Height: float64(max(h-1, 1) * cellHeight),
	}

	p.tracker = bubbles.Tracker{
		Camera: bubbles.NewCamera(
			mgl32.Vec3{0, 1.5, 3.5},
			mgl32.Vec3{0, 1.3, 0},
			mgl32.Vec3{0, 1, 0},
			50, float32(v.Width/v.Height), 0.1, 100,
		),
		Viewport: v,
	}

	p.engine.SetViewport(v)
}

// speakNext hands the next canned line to whichever speaker is free.
func (p *preview) speakNext() {
	for range p.speakers {
		s := p.speakers[p.next%len(p.speakers)]
		line := previewLines[p.next%len(previewLines)]
		p.next++

		if p.engine.Speak(s.id, line) == nil {
			return
		}
	}
}

func (p *preview) updateAnchors() {
	t := time.Since(p.started).Seconds()

	for _, s := range p.speakers {
		sway := float32(0.15 * math.Sin(t+s.phase))
		model := mgl32.Translate3D(s.x+sway, 0, 0)

		if a, ok := p.tracker.Track(p.rig.Joints(model)); ok {
			p.engine.UpdateAnchor(s.id, a)
		}
	}
}

func (p *preview) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
			p.speakNext()
		}

	case *tcell.EventResize:
		p.screen.Sync()
		p.resize()
	}

	return true
}

func (p *preview) run(ctx context.Context) error {
	ticker := time.NewTicker(frameRate)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			if !p.handleInput(ev) {
				return nil
			}

		case <-ticker.C:
			p.updateAnchors()
			p.draw()

		case <-ctx.Done():
			return nil
		}
	}
}

func (p *preview) styleFor(id string) tcell.Style {
	for _, s := range p.speakers {
		if s.id == id {
			return s.style
		}
	}
	return tcell.StyleDefault
}

func (p *preview) draw() {
	p.screen.Clear()

	w, h := p.screen.Size()
	v, views := p.engine.ViewportSnapshot()

	for _, view := range views {
		if !view.Anchored {
			continue
		}

		style := p.styleFor(view.SpeakerID)
		origin := view.Anchor.Pixel(v)

		jx, jy := int(origin.X/cellWidth), int(origin.Y/cellHeight)
		hy := int(view.Anchor.HeadTopYPct / 100 * v.Height / cellHeight)

		for y := hy; y < jy; y++ {
			p.screen.SetContent(jx, y, '|', nil, style)
		}
		p.screen.SetContent(jx, hy, 'O', nil, style)

		mouth := '-'
		if view.State == bubbles.Speaking && (view.TalkTrigger+uint64(time.Now().UnixMilli()/200))%2 == 0 {
			mouth = 'o'
		}
		p.screen.SetContent(jx, jy, mouth, nil, style.Bold(true))

		for _, b := range view.Bubbles {
			p.drawBubble(b, style)
		}
	}

	p.drawStatus(w, h)
	p.screen.Show()
}

func (p *preview) drawBubble(b bubbles.PlacedBubble, style tcell.Style) {
	left := int((b.AbsX - b.Width/2) / cellWidth)
	right := int((b.AbsX + b.Width/2) / cellWidth)
	top := int((b.AbsY - b.Height) / cellHeight)
	bottom := int(b.AbsY / cellHeight)

	if right-left < 2 || bottom-top < 2 {
		return
	}

	for x := left + 1; x < right; x++ {
		p.screen.SetContent(x, top, tcell.RuneHLine, nil, style)
		p.screen.SetContent(x, bottom, tcell.RuneHLine, nil, style)
	}
	for y := top + 1; y < bottom; y++ {
		p.screen.SetContent(left, y, tcell.RuneVLine, nil, style)
		p.screen.SetContent(right, y, tcell.RuneVLine, nil, style)
		for x := left + 1; x < right; x++ {
			p.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}
	p.screen.SetContent(left, top, tcell.RuneULCorner, nil, style)
	p.screen.SetContent(right, top, tcell.RuneURCorner, nil, style)
	p.screen.SetContent(left, bottom, tcell.RuneLLCorner, nil, style)
	p.screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, style)

	inner := right - left - 2
	row := top + 1
	for _, line := range wrap(b.Text, inner) {
		if row >= bottom {
			break
		}
		for i, r := range []rune(line) {
			p.screen.SetContent(left+2+i, row, r, nil, tcell.StyleDefault)
		}
		row++
	}
}

func (p *preview) drawStatus(w, h int) {
	line := fmt.Sprintf(" bubblebox v%s | enter: next line | q: quit | %s", releaseVersion, p.status.String())

	for i, r := range []rune(line) {
		if i >= w {
			break
		}
		p.screen.SetContent(i, h-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) []string {
	if width < 1 {
		return nil
	}

	var (
		lines   []string
		current []rune
	)

	for _, word := range strings.Fields(text) {
		runes := []rune(word)

		for len(runes) > width {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = nil
			}
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}

		switch {
		case len(current) == 0:
			current = runes
		case len(current)+1+len(runes) <= width:
			current = append(append(current, ' '), runes...)
		default:
			lines = append(lines, string(current))
			current = runes
		}
	}

	if len(current) > 0 {
		lines = append(lines, string(current))
	}

	return lines
}
