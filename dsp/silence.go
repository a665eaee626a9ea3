package dsp

import "time"

const (
	SilenceThreshold   = 0.01
	SilenceMinDuration = 2 * time.Second
)

// SilenceDetector tracks how long the level has stayed below Threshold.
// The timer starts at the first quiet sample; any loud sample clears it.
type SilenceDetector struct {
	Threshold   float64
	MinDuration time.Duration

	since   time.Duration
	running bool
}

func NewSilenceDetector() *SilenceDetector {
	return &SilenceDetector{Threshold: SilenceThreshold, MinDuration: SilenceMinDuration}
}

// Update feeds one level reading taken at now and reports whether silence
// is active along with how long it has lasted.
func (d *SilenceDetector) Update(level float64, now time.Duration) (bool, time.Duration) {
	if !IsSilence(level, d.Threshold) {
		d.running = false
		return false, 0
	}
	if !d.running {
		d.running = true
		d.since = now
	}
	quiet := now - d.since
	return quiet >= d.MinDuration, quiet
}

func (d *SilenceDetector) Reset() {
	d.running = false
	d.since = 0
}
