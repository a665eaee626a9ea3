package inference

import (
	"math"
	"time"

	"cadence/event"
)

const (
	StrengthDelta          = 0.35
	PositionChangeCooldown = 8000 * time.Millisecond
)

// Position detects position changes from speech requests, rhythm falling
// edges and large jumps in rhythm strength.
type Position struct {
	consumed int

	primed       bool
	lastRhythm   bool
	lastStrength float64

	emitted      bool
	lastChangeAt time.Duration
}

func NewPosition() *Position { return &Position{} }

func (p *Position) Reset() { *p = Position{} }

func (p *Position) interrupt(consumed int) {
	p.consumed = max(p.consumed, consumed)
	p.primed = false
}

func (p *Position) Update(in Input) []Output {
	// The log may have been reset under us; never index past its end.
	if p.consumed > len(in.Events) {
		p.consumed = len(in.Events)
	}
	if in.Status != event.StatusActive {
		// requests made while paused are dropped, not replayed on resume
		p.consumed = len(in.Events)
		return nil
	}

	var out []Output
	for _, e := range in.Events[p.consumed:] {
		if e.Type == event.PositionChangeRequest {
			out = append(out, Output{Type: event.PositionChange, Confidence: e.Confidence,
				Payload: map[string]any{"trigger": "speech", "requestId": e.ID}})
		}
	}
	p.consumed = len(in.Events)

	rhythm := in.Features.Rhythm
	if !p.primed {
		p.primed = true
		p.lastRhythm = rhythm.Active
		p.lastStrength = rhythm.Strength
		p.note(out, in.Now)
		return out
	}

	if p.lastRhythm && !rhythm.Active {
		out = append(out, Output{Type: event.PositionChange, Confidence: clamp01(p.lastStrength),
			Payload: map[string]any{"trigger": "rhythm_edge"}})
	}

	delta := math.Abs(rhythm.Strength - p.lastStrength)
	cooled := !p.emitted || in.Now-p.lastChangeAt >= PositionChangeCooldown
	if len(out) == 0 && delta >= StrengthDelta && cooled {
		out = append(out, Output{Type: event.PositionChange, Confidence: clamp01(delta),
			Payload: map[string]any{"trigger": "strength_delta"}})
	}

	p.lastRhythm = rhythm.Active
	p.lastStrength = rhythm.Strength
	p.note(out, in.Now)
	return out
}

func (p *Position) note(out []Output, now time.Duration) {
	if len(out) > 0 {
		p.emitted = true
		p.lastChangeAt = now
	}
}
