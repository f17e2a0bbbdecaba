package mech

import "fmt"

// Mode describes one mechanical resonance: frequency in Hz, quality
// factor, and static detuning coupling in Hz per MV^2.
type Mode struct {
	FreqHz float64 `yaml:"freq_hz" json:"freq_hz"`
	Q      float64 `yaml:"q" json:"q"`
	K      float64 `yaml:"k" json:"k"`
}

// ModeSet is the ordered, immutable list of mechanical modes fixed at
// initialization. Its length defines the dimensionality of the discrete
// model and of every per-mode history channel.
type ModeSet []Mode

func (ms ModeSet) Validate() error {
	if len(ms) == 0 {
		return fmt.Errorf("mech: empty mode set")
	}
	for i, m := range ms {
		if m.FreqHz <= 0 {
			return fmt.Errorf("mech: mode %d: frequency must be positive, got %g", i, m.FreqHz)
		}
		if m.Q <= 0 {
			return fmt.Errorf("mech: mode %d: quality factor must be positive, got %g", i, m.Q)
		}
	}
	return nil
}

// DefaultModes are the five TESLA-style cavity modes used throughout the
// simulator when no configuration overrides them.
func DefaultModes() ModeSet {
	return ModeSet{
		{FreqHz: 280, Q: 40, K: 2},
		{FreqHz: 341, Q: 20, K: 0.8},
		{FreqHz: 460, Q: 50, K: 2},
		{FreqHz: 487, Q: 80, K: 0.6},
		{FreqHz: 618, Q: 100, K: 0.2},
	}
}
