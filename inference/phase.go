package inference

import (
	"time"

	"cadence/event"
)

type PhaseState string

const (
	PhaseNone        PhaseState = "none"
	PhaseForeplay    PhaseState = "foreplay"
	PhaseIntercourse PhaseState = "intercourse"
	PhaseCooldown    PhaseState = "cooldown"
)

const (
	RhythmOnset  = 4000 * time.Millisecond
	RhythmOffset = 4000 * time.Millisecond
)

// Phase tracks the coarse activity stage. Cooldown is terminal.
type Phase struct {
	state      PhaseState
	lastStatus event.Status

	// start of the current run of rhythm-active or rhythm-inactive ticks
	rhythmSince time.Duration
	rhythmOn    bool
	tracking    bool
}

func NewPhase() *Phase {
	p := &Phase{}
	p.Reset()
	return p
}

func (p *Phase) State() PhaseState { return p.state }

func (p *Phase) Reset() {
	p.state = PhaseNone
	p.lastStatus = event.StatusIdle
	p.rhythmSince = 0
	p.rhythmOn = false
	p.tracking = false
}

func (p *Phase) interrupt() {
	p.rhythmSince = 0
	p.rhythmOn = false
	p.tracking = false
}

func (p *Phase) Update(in Input) []Output {
	var out []Output
	entered := in.Status != p.lastStatus
	p.lastStatus = in.Status

	if entered && in.Status == event.StatusActive && p.state == PhaseNone {
		p.state = PhaseForeplay
		out = append(out, Output{Type: event.PhaseStartForeplay, Confidence: 1,
			Payload: map[string]any{"reason": "session_active"}})
	}
	if entered && in.Status == event.StatusEnded && p.state != PhaseCooldown {
		p.state = PhaseCooldown
		out = append(out, Output{Type: event.PhaseStartCooldown, Confidence: 1,
			Payload: map[string]any{"reason": "session_ended"}})
	}
	if in.Status != event.StatusActive {
		return out
	}

	rhythm := in.Features.Rhythm
	if !p.tracking || rhythm.Active != p.rhythmOn {
		p.tracking = true
		p.rhythmOn = rhythm.Active
		p.rhythmSince = in.Now
	}
	held := in.Now - p.rhythmSince

	switch {
	case p.state == PhaseForeplay && rhythm.Active && held >= RhythmOnset:
		p.state = PhaseIntercourse
		conf := clamp01(rhythm.Strength)
		out = append(out,
			Output{Type: event.PhaseEndForeplay, Confidence: conf},
			Output{Type: event.PhaseStartIntercourse, Confidence: conf,
				Payload: map[string]any{"reason": "rhythm_sustained", "bpm": rhythm.BPM}},
		)
	case p.state == PhaseIntercourse && !rhythm.Active && held >= RhythmOffset:
		p.state = PhaseCooldown
		out = append(out, Output{Type: event.PhaseStartCooldown, Confidence: clamp01(1 - rhythm.Strength),
			Payload: map[string]any{"reason": "rhythm_ceased"}})
	}
	return out
}
