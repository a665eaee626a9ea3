// Package cue plays short tones when the session starts, pauses, resumes
// or ends, so the hotkey can be used without looking at the screen.
package cue

import (
	"math"
	"sync"
	"sync/atomic"

	"cadence/event"
)

type Kind int

const (
	Start Kind = iota
	Pause
	Resume
	End
)

const sampleRate = 44100

type note struct {
	freq     float64
	duration float64 // seconds
	gap      float64 // silence after the note, seconds
}

const (
	volume = 0.5
	decay  = 45
)

// Pause falls and Resume rises; End is a low double tone.
var melodies = map[Kind][]note{
	Start:  {{freq: 1200, duration: 0.12}},
	Pause:  {{freq: 1000, duration: 0.08, gap: 0.03}, {freq: 700, duration: 0.1}},
	Resume: {{freq: 700, duration: 0.08, gap: 0.03}, {freq: 1000, duration: 0.1}},
	End:    {{freq: 500, duration: 0.1, gap: 0.06}, {freq: 500, duration: 0.14}},
}

var (
	disabled atomic.Bool
	cache    sync.Map // Kind -> []int16
)

func Disable() { disabled.Store(true) }

// ForStatus maps a status change to its cue. It reports false when the
// change has no cue.
func ForStatus(prev, next event.Status) (Kind, bool) {
	switch {
	case next == event.StatusActive && prev == event.StatusIdle:
		return Start, true
	case next == event.StatusActive && prev == event.StatusPaused:
		return Resume, true
	case next == event.StatusPaused:
		return Pause, true
	case next == event.StatusEnded:
		return End, true
	}
	return 0, false
}

// Play starts the cue in the background and returns immediately. Playback
// failures are silent.
func Play(k Kind) {
	if disabled.Load() {
		return
	}
	go play(Samples(k))
}

// Samples renders the cue as mono 16-bit samples at 44.1 kHz.
func Samples(k Kind) []int16 {
	if s, ok := cache.Load(k); ok {
		return s.([]int16)
	}
	var out []int16
	for _, n := range melodies[k] {
		out = append(out, tone(n.freq, n.duration)...)
		out = append(out, make([]int16, int(n.gap*sampleRate))...)
	}
	cache.Store(k, out)
	return out
}

func tone(freq, duration float64) []int16 {
	n := int(sampleRate * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
	}
	return out
}
