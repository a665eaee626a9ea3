package dsp

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	MinBPM = 30
	MaxBPM = 180

	// minRhythmSamples is the smallest window autocorrelation is run on.
	minRhythmSamples = 6
)

type Rhythm struct {
	Strength float64
	BPM      float64 // zero when no periodicity was found
}

// ComputeRhythm estimates periodicity of values sampled at rateHz using
// normalized autocorrelation over lags in the [minBPM, maxBPM] tempo band.
func ComputeRhythm(values []float64, rateHz, minBPM, maxBPM float64) Rhythm {
	n := len(values)
	if n < minRhythmSamples || rateHz <= 0 || minBPM <= 0 || maxBPM <= minBPM {
		return Rhythm{}
	}

	centered := slices.Clone(values)
	floats.AddConst(-stat.Mean(centered, nil), centered)
	energy := floats.Dot(centered, centered)
	if energy <= 0 {
		return Rhythm{}
	}

	minLag := max(1, int(math.Floor(60*rateHz/maxBPM)))
	maxLag := min(n-2, int(math.Ceil(60*rateHz/minBPM)))
	if maxLag <= minLag {
		return Rhythm{}
	}

	bestLag, bestCorr := minLag, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := floats.Dot(centered[lag:], centered[:n-lag]) / energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestCorr <= 0 {
		return Rhythm{}
	}

	return Rhythm{
		Strength: math.Max(0, math.Min(1, bestCorr)),
		BPM:      60 * rateHz / float64(bestLag),
	}
}
