/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClockFiresInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "c") })

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, 2, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, start.Add(2500*time.Millisecond), c.Now())
}

func TestManualClockChainsCallbacks(t *testing.T) {
	c := NewManualClock(time.Time{})

	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)

	assert.Equal(t, 5, count)
	assert.Equal(t, 1, c.Pending())
}

func TestManualClockStop(t *testing.T) {
	c := NewManualClock(time.Time{})

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)
}
