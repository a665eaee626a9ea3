package hotkey

import "time"

type Action int

const (
	// ActionToggle pauses an active session or resumes a paused one. It
	// also starts an idle session.
	ActionToggle Action = iota
	// ActionEnd ends the session.
	ActionEnd
)

func (a Action) String() string {
	if a == ActionEnd {
		return "end"
	}
	return "toggle"
}

// Control turns presses of one chord into session actions: a tap toggles,
// a press held for longPress ends the session. The end action fires as
// soon as the threshold passes, without waiting for the release.
type Control struct {
	actions chan Action
	done    chan struct{}
}

func NewControl(hk Hotkey, longPress time.Duration) *Control {
	c := &Control{
		actions: make(chan Action, 1),
		done:    make(chan struct{}),
	}
	go c.run(hk, longPress)
	return c
}

func (c *Control) Actions() <-chan Action { return c.actions }

// Close stops the control loop. The underlying hotkey is left registered.
func (c *Control) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Control) run(hk Hotkey, longPress time.Duration) {
	for {
		select {
		case <-hk.Keydown():
		case <-c.done:
			return
		}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			c.send(ActionEnd)
			select {
			case <-hk.Keyup():
			case <-c.done:
				return
			}
		case <-hk.Keyup():
			timer.Stop()
			c.send(ActionToggle)
		case <-c.done:
			timer.Stop()
			return
		}
	}
}

func (c *Control) send(a Action) {
	select {
	case c.actions <- a:
	case <-c.done:
	}
}
