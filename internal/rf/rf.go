package rf

import (
	"math"
	"math/cmplx"
)

// Source advances the oscillator phase accumulator by 2π·f·dt and returns
// the next baseband sample amplitude·e^{i·phase}.
func Source(freqOffsetHz, amplitude, phaseAccum, dt float64) (complex128, float64) {
	pha := phaseAccum + 2.0*math.Pi*freqOffsetHz*dt
	return complex(amplitude, 0) * cmplx.Exp(complex(0, pha)), pha
}

// Modulate applies the I/Q modulator gate. In pulsed mode the sample is
// multiplied by the baseband envelope at bufIdx; an index past the end of
// the envelope clamps to the last element. In CW mode a fixed scalar gate
// is applied.
func Modulate(sig complex128, pulsed bool, base []complex128, gateCW complex128, bufIdx int) complex128 {
	if !pulsed {
		return sig * gateCW
	}
	if bufIdx < 0 {
		bufIdx = 0
	}
	if bufIdx >= len(base) {
		bufIdx = len(base) - 1
	}
	return sig * base[bufIdx]
}

// Amplify applies a linear voltage gain of 10^(gainDB/20). The amplifier
// is ideal: no saturation or compression is modeled.
func Amplify(sig complex128, gainDB float64) complex128 {
	return sig * complex(math.Pow(10.0, gainDB/20.0), 0)
}
