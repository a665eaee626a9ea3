package main

import (
	"fmt"
	"io"
	"time"

	"cadence/event"
)

// display forwards events to the terminal UI, or prints them one per line
// when the UI is off. Signals are polled through engine snapshots instead.
type display struct {
	plain io.Writer
}

func (d display) AppendEvent(e event.Event) error {
	if d.plain != nil {
		_, err := fmt.Fprintf(d.plain, "%6s  %-26s %-9s %.2f\n", mmss(time.Duration(e.T*float64(time.Second))), e.Type, e.Source, e.Confidence)
		return err
	}
	tuiSend(EventMsg{Event: e})
	return nil
}

func (display) AppendSignal(event.Signal) error { return nil }
