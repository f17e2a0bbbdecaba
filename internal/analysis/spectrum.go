// Package analysis provides offline analysis of captured history, for
// identifying mechanical mode activity from recorded detuning data.
package analysis

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Line is one spectral line of a one-sided amplitude spectrum.
type Line struct {
	FreqHz    float64
	Amplitude float64
}

// Spectrum computes the one-sided amplitude spectrum of a uniformly
// sampled channel (sample interval ts, seconds). A Hann window is applied
// to reduce leakage from the strong narrowband mechanical lines.
func Spectrum(data []float64, ts float64) ([]Line, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("analysis: need at least 4 samples, got %d", len(data))
	}
	if ts <= 0 {
		return nil, fmt.Errorf("analysis: sample interval must be positive, got %g", ts)
	}

	windowed := make([]float64, len(data))
	copy(windowed, data)
	window.Apply(windowed, window.Hann)

	bins := fft.FFTReal(windowed)
	n := len(bins)
	half := n / 2

	lines := make([]Line, half)
	df := 1 / (ts * float64(n))
	for i := 0; i < half; i++ {
		amp := cmplx.Abs(bins[i]) / float64(n)
		if i > 0 {
			amp *= 2 // fold the negative-frequency half
		}
		lines[i] = Line{FreqHz: float64(i) * df, Amplitude: amp}
	}
	return lines, nil
}

// Peaks returns the n strongest local maxima of a spectrum, strongest
// first. The DC bin is excluded.
func Peaks(lines []Line, n int) []Line {
	if n <= 0 {
		return nil
	}
	peaks := make([]Line, 0, n)
	for i := 1; i < len(lines)-1; i++ {
		if lines[i].Amplitude > lines[i-1].Amplitude && lines[i].Amplitude >= lines[i+1].Amplitude {
			peaks = append(peaks, lines[i])
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Amplitude > peaks[j].Amplitude })
	if len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}
