// Package session tracks session status and elapsed time with paused
// intervals excluded.
package session

import (
	"sync"
	"time"

	"cadence/event"
)

// Clock is safe for concurrent use: the hotkey and TUI goroutines drive it
// while the engine reads Status and Elapsed.
type Clock struct {
	mu  sync.Mutex
	now func() time.Time

	status      event.Status
	startedAt   time.Time
	pausedAt    time.Time
	endedAt     time.Time
	totalPaused time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Now, status: event.StatusIdle}
}

// WithNow replaces the wall clock, for tests and replay.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.now = now
	return c
}

func (c *Clock) Status() event.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start moves idle to active. It reports false in any other state.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != event.StatusIdle {
		return false
	}
	c.startedAt = c.now()
	c.status = event.StatusActive
	return true
}

func (c *Clock) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != event.StatusActive {
		return false
	}
	c.pausedAt = c.now()
	c.status = event.StatusPaused
	return true
}

func (c *Clock) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != event.StatusPaused {
		return false
	}
	c.totalPaused += c.now().Sub(c.pausedAt)
	c.status = event.StatusActive
	return true
}

// Toggle pauses an active session or resumes a paused one.
func (c *Clock) Toggle() bool {
	switch c.Status() {
	case event.StatusActive:
		return c.Pause()
	case event.StatusPaused:
		return c.Resume()
	}
	return false
}

// End closes an active or paused session. Ended is terminal.
func (c *Clock) End() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case event.StatusActive:
	case event.StatusPaused:
		c.totalPaused += c.now().Sub(c.pausedAt)
	default:
		return false
	}
	c.endedAt = c.now()
	c.status = event.StatusEnded
	return true
}

// Elapsed is active time since Start, frozen while paused and after End.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ref time.Time
	switch c.status {
	case event.StatusIdle:
		return 0
	case event.StatusPaused:
		ref = c.pausedAt
	case event.StatusEnded:
		ref = c.endedAt
	default:
		ref = c.now()
	}
	return ref.Sub(c.startedAt) - c.totalPaused
}

func (c *Clock) TotalPaused() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPaused
}

func (c *Clock) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}
