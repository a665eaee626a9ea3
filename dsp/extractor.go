package dsp

import "time"

const (
	RhythmWindow    = 4000 * time.Millisecond
	RhythmThreshold = 0.35
)

type RhythmState struct {
	Active   bool
	Strength float64
	BPM      float64
}

// SignalState is the feature snapshot produced once per feature tick.
type SignalState struct {
	RMS            float64
	SilenceActive  bool
	SilenceSeconds float64
	Rhythm         RhythmState
}

type sample struct {
	t time.Duration
	v float64
}

// Extractor turns a stream of level readings into SignalState snapshots.
// It keeps a sliding RhythmWindow of readings for the rhythm estimate.
type Extractor struct {
	Window    time.Duration
	Threshold float64

	silence *SilenceDetector
	samples []sample
}

func NewExtractor() *Extractor {
	return &Extractor{
		Window:    RhythmWindow,
		Threshold: RhythmThreshold,
		silence:   NewSilenceDetector(),
	}
}

// Update feeds the level measured at now. When active is false the
// extractor drops its history and reports the zero state.
func (e *Extractor) Update(rms float64, now time.Duration, active bool) SignalState {
	if !active {
		e.Reset()
		return SignalState{}
	}

	silent, quiet := e.silence.Update(rms, now)

	e.samples = append(e.samples, sample{t: now, v: rms})
	cutoff := now - e.Window
	drop := 0
	for drop < len(e.samples) && e.samples[drop].t < cutoff {
		drop++
	}
	e.samples = e.samples[drop:]

	var r Rhythm
	if n := len(e.samples); n >= minRhythmSamples {
		span := (e.samples[n-1].t - e.samples[0].t).Seconds()
		if span > 0 {
			values := make([]float64, n)
			for i, s := range e.samples {
				values[i] = s.v
			}
			r = ComputeRhythm(values, float64(n-1)/span, MinBPM, MaxBPM)
		}
	}

	return SignalState{
		RMS:            rms,
		SilenceActive:  silent,
		SilenceSeconds: quiet.Seconds(),
		Rhythm: RhythmState{
			Active:   r.Strength >= e.Threshold,
			Strength: r.Strength,
			BPM:      r.BPM,
		},
	}
}

func (e *Extractor) Reset() {
	e.silence.Reset()
	e.samples = e.samples[:0]
}
