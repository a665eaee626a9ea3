// Package dsp extracts intensity, silence and rhythm features from the
// microphone amplitude stream.
package dsp

import "math"

// RMS is the root-mean-square of samples, zero for an empty window.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilence reports whether level is strictly below threshold.
func IsSilence(level, threshold float64) bool {
	return level < threshold
}
