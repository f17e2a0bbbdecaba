package rf

import "fmt"

// Params are the LLRF drive settings read by the simulation driver once
// per step (snapshot semantics) and mutated by the control surface at any
// time between steps.
type Params struct {
	Amplitude    float64 `yaml:"amplitude" json:"amplitude"`
	PhaseDeg     float64 `yaml:"phase_deg" json:"phase_deg"`
	FreqOffsetHz float64 `yaml:"freq_offset_hz" json:"freq_offset_hz"`
	BeamCurrentA float64 `yaml:"beam_current_a" json:"beam_current_a"`
	Pulsed       bool    `yaml:"pulsed" json:"pulsed"`
	GainDB       float64 `yaml:"gain_db" json:"gain_db"`
}

func (p Params) Validate() error {
	if p.Amplitude < 0 {
		return fmt.Errorf("rf: amplitude must be non-negative, got %g", p.Amplitude)
	}
	if p.BeamCurrentA < 0 {
		return fmt.Errorf("rf: beam current must be non-negative, got %g", p.BeamCurrentA)
	}
	return nil
}
