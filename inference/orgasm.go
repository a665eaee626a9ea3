package inference

import (
	"time"

	"cadence/event"
)

const (
	SpikeDelta       = 0.02
	SpikeMinRMS      = 0.05
	SpikeMinStrength = 0.4
	ConfirmWindow    = 12000 * time.Millisecond
	OrgasmCooldown   = 60000 * time.Millisecond

	// rms at which the intensity term of the confidence saturates
	intensityFull = 0.25
)

type spike struct {
	at       time.Duration
	rms      float64
	strength float64
}

// Orgasm is a spike-and-confirm detector: a sharp rise in level during
// strong rhythm, followed by silence within ConfirmWindow.
type Orgasm struct {
	lastRMS float64
	pending *spike

	emitted  bool
	lastEmit time.Duration
}

func NewOrgasm() *Orgasm { return &Orgasm{} }

func (o *Orgasm) Reset() { *o = Orgasm{} }

func (o *Orgasm) interrupt() {
	o.lastRMS = 0
	o.pending = nil
}

func (o *Orgasm) Update(in Input) []Output {
	if in.Status != event.StatusActive {
		return nil
	}

	f := in.Features
	delta := f.RMS - o.lastRMS
	o.lastRMS = f.RMS
	if delta > SpikeDelta && f.RMS > SpikeMinRMS && f.Rhythm.Strength > SpikeMinStrength {
		o.pending = &spike{at: in.Now, rms: f.RMS, strength: f.Rhythm.Strength}
	}

	if o.pending == nil || !f.SilenceActive {
		return nil
	}
	if in.Now-o.pending.at >= ConfirmWindow {
		o.pending = nil
		return nil
	}
	if o.emitted && in.Now-o.lastEmit < OrgasmCooldown {
		return nil
	}

	s := o.pending
	o.pending = nil
	o.emitted = true
	o.lastEmit = in.Now
	return []Output{{
		Type:       event.OrgasmEvent,
		Confidence: clamp01(0.5*s.strength + 0.5*min(1, s.rms/intensityFull)),
		Payload: map[string]any{
			"spikeAgoMs": (in.Now - s.at).Milliseconds(),
			"peakRms":    s.rms,
		},
	}}
}
