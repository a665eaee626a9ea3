// Package inference turns per-tick features, session status and the event
// stream into phase, position and orgasm events.
//
// Each machine owns its state exclusively and is driven from a single tick
// loop. The clock is an input, so the machines never read wall time.
package inference

import (
	"time"

	"cadence/dsp"
	"cadence/event"
)

// Input is the snapshot handed to every machine on a clock tick. Events is
// the session's event log so far, in append order; machines only read it.
type Input struct {
	Status   event.Status
	Features dsp.SignalState
	Events   []event.Event
	Now      time.Duration
}

type Output struct {
	Type       event.Type
	Confidence float64
	Payload    map[string]any
}

// Machine is the common shape of the three inference machines.
type Machine interface {
	Update(in Input) []Output
	Reset()
}

// Set runs the machines in a fixed order: phase, position, orgasm.
type Set struct {
	Phase    *Phase
	Position *Position
	Orgasm   *Orgasm
}

func NewSet() *Set {
	return &Set{Phase: NewPhase(), Position: NewPosition(), Orgasm: NewOrgasm()}
}

func (s *Set) Update(in Input) []Output {
	var out []Output
	for _, m := range s.machines() {
		out = append(out, m.Update(in)...)
	}
	return out
}

func (s *Set) Reset() {
	for _, m := range s.machines() {
		m.Reset()
	}
}

// Interrupt prepares the machines for a capture restart within the same
// session. Progress (phase, cooldowns, consumed requests) is kept; anything
// derived from the interrupted signal is dropped. consumed is the length of
// the event log at the interruption.
func (s *Set) Interrupt(consumed int) {
	s.Phase.interrupt()
	s.Position.interrupt(consumed)
	s.Orgasm.interrupt()
}

func (s *Set) machines() []Machine {
	return []Machine{s.Phase, s.Position, s.Orgasm}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
