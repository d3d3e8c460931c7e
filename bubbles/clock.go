/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"sort"
	"sync"
	"time"
)

// Clock is the timer source driving every speaker's schedule.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a controllable Clock. Callbacks run synchronously from
// Advance, in deadline order, on the caller's goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   uint64
	fn    func()
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{
		clock: c,
		at:    c.now.Add(d),
		seq:   c.seq,
		fn:    f,
	}
	c.timers = append(c.timers, t)

	return t
}

func (t *manualTimer) Stop() bool {
	c := t.clock

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}

	return false
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// Advance moves the clock forward by d, firing every timer that comes due.
// Timers scheduled by a firing callback also fire if they fall within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})

		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()

			return
		}

		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}
