/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every tunable constant of the engine. Geometry is in pixels.
type Config struct {
	MaxFragment int
	MinFragment int
	WaveSize    int

	Stagger   time.Duration
	WaveDwell time.Duration
	// Linger expires an idle speaker's bubbles; zero keeps them until the next utterance.
	Linger time.Duration

	Gap          float64
	Margin       float64
	SpiralStep   float64
	SpiralRadius float64
	JawClearance float64
	NudgePadding float64
}

func DefaultConfig() Config {
	return Config{
		MaxFragment:  140,
		MinFragment:  30,
		WaveSize:     3,
		Stagger:      600 * time.Millisecond,
		WaveDwell:    6800 * time.Millisecond,
		Gap:          10,
		Margin:       20,
		SpiralStep:   30,
		SpiralRadius: 800,
		JawClearance: 60,
		NudgePadding: 5,
	}
}

func (c Config) Validate() error {
	if c.MaxFragment < 1 {
		return fmt.Errorf("invalid max fragment length (must be positive): %d", c.MaxFragment)
	}
	if c.MinFragment < 0 || c.MinFragment >= c.MaxFragment {
		return fmt.Errorf("invalid min fragment length (must be between 0 and %d): %d", c.MaxFragment-1, c.MinFragment)
	}
	if c.WaveSize < 1 {
		return fmt.Errorf("invalid wave size (must be positive): %d", c.WaveSize)
	}
	if c.Stagger < 0 || c.WaveDwell < 0 || c.Linger < 0 {
		return errors.New("stagger, wave dwell and linger must not be negative")
	}
	if c.Gap < 0 || c.Margin < 0 || c.JawClearance < 0 || c.NudgePadding < 0 {
		return errors.New("gap, margin, jaw clearance and nudge padding must not be negative")
	}
	if c.SpiralStep <= 0 || c.SpiralRadius < c.SpiralStep {
		return fmt.Errorf("invalid spiral search (step %.0f, radius %.0f)", c.SpiralStep, c.SpiralRadius)
	}
	return nil
}
