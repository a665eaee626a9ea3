package hotkey

import (
	"sync/atomic"
	"time"
)

// Fake is a Hotkey driven by test code.
type Fake struct {
	down       chan struct{}
	up         chan struct{}
	registered atomic.Bool
}

func NewFake() *Fake {
	return &Fake{
		down: make(chan struct{}, 1),
		up:   make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error          { f.registered.Store(true); return nil }
func (f *Fake) Unregister()              { f.registered.Store(false) }
func (f *Fake) Registered() bool         { return f.registered.Load() }
func (f *Fake) Keydown() <-chan struct{} { return f.down }
func (f *Fake) Keyup() <-chan struct{}   { return f.up }

func (f *Fake) Press()   { f.down <- struct{}{} }
func (f *Fake) Release() { f.up <- struct{}{} }

// Tap presses and releases the chord immediately.
func (f *Fake) Tap() {
	f.Press()
	f.Release()
}

// Hold keeps the chord down for d before releasing it.
func (f *Fake) Hold(d time.Duration) {
	f.Press()
	time.Sleep(d)
	f.Release()
}
