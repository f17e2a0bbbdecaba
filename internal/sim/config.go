package sim

import (
	"fmt"
	"math"

	"github.com/llrflab/cavsim/internal/rf"
)

// Config carries the physical constants and buffer geometry of one
// simulated cavity. Fixed at driver construction.
type Config struct {
	Ts   float64 // sample interval, s
	F0   float64 // cavity resonance, Hz
	QL   float64 // loaded quality factor
	RoQ  float64 // r/Q, Ohm
	Beta float64 // input coupling coefficient

	// NoiseStd is the microphonics standard deviation in rad/s; zero
	// disables the noise draw entirely.
	NoiseStd float64
	Seed     int64

	// Pulsed-mode buffer geometry, in steps.
	BufSize  int
	TFill    int
	TFlat    int
	PulseLen int
}

// DefaultConfig reproduces the reference 1.3 GHz TESLA-style cavity.
func DefaultConfig() Config {
	return Config{
		Ts:       1e-6,
		F0:       1.3e9,
		QL:       3e6,
		RoQ:      1036,
		Beta:     1e4,
		NoiseStd: 2 * math.Pi * 10,
		Seed:     1,
		BufSize:  2048 * 8,
		TFill:    510,
		TFlat:    1300,
		PulseLen: 2048 * 10,
	}
}

// LoadResistance returns RL = 0.5*(r/Q)*QL.
func (c Config) LoadResistance() float64 { return 0.5 * c.RoQ * c.QL }

// HalfBandwidth returns wh = pi*f0/QL in rad/s.
func (c Config) HalfBandwidth() float64 { return math.Pi * c.F0 / c.QL }

func (c Config) Validate() error {
	if c.Ts <= 0 {
		return fmt.Errorf("sim: timestep must be positive, got %g", c.Ts)
	}
	if c.F0 <= 0 || c.QL <= 0 || c.RoQ <= 0 {
		return fmt.Errorf("sim: cavity constants must be positive")
	}
	if c.Beta <= 0 {
		return fmt.Errorf("sim: coupling beta must be positive, got %g", c.Beta)
	}
	if c.BufSize <= 0 || c.PulseLen <= 0 {
		return fmt.Errorf("sim: buffer sizes must be positive")
	}
	if c.TFill < 0 || c.TFlat < c.TFill || c.TFlat > c.BufSize {
		return fmt.Errorf("sim: invalid pulse window [%d, %d) for buffer size %d", c.TFill, c.TFlat, c.BufSize)
	}
	return nil
}

// DefaultGainDB is the reference amplifier gain, a linear voltage gain
// of 12e6 expressed in dB.
func DefaultGainDB() float64 { return 20 * math.Log10(12e6) }

// DefaultParams are the reference drive settings: unit amplitude, -460 Hz
// source offset, 8 mA beam, CW.
func DefaultParams() rf.Params {
	return rf.Params{
		Amplitude:    1.0,
		PhaseDeg:     0,
		FreqOffsetHz: -460,
		BeamCurrentA: 0.008,
		Pulsed:       false,
		GainDB:       DefaultGainDB(),
	}
}
