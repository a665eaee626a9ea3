// Package hotkey reads the global session-control chord (Ctrl+Shift+P).
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Label is the chord as shown to the user.
const Label = "Ctrl+Shift+P"

// evdev key codes
const (
	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keyP      = 25
)

// chord tracks modifier state across raw key events and reports the edges
// of the full chord. A press of P without both modifiers is ignored, and
// its release is too.
type chord struct {
	ctrl, shift, held bool
}

func (c *chord) feed(code uint16, pressed, released bool) (down, up bool) {
	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = pressed || (!released && c.ctrl)
	case keyLShift, keyRShift:
		c.shift = pressed || (!released && c.shift)
	case keyP:
		if pressed && !c.held && c.ctrl && c.shift {
			c.held = true
			return true, false
		}
		if released && c.held {
			c.held = false
			return false, true
		}
	}
	return false, false
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
