// Package cavity holds the electrical state of the simulated cavity and
// the per-step integrator coupling RF drive, beam loading and mechanical
// detuning into the next cavity voltage.
package cavity

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/llrflab/cavsim/internal/mech"
)

// ErrNonFinite reports a NaN or Inf entering or leaving the integrator.
var ErrNonFinite = errors.New("cavity: non-finite value in step")

// State is the mutable per-cavity simulation state, owned by the
// simulation driver.
type State struct {
	Voltage     complex128 // stored cavity voltage, V
	Mech        mech.State // per-mode displacement/velocity
	Detuning    float64    // total detuning, rad/s
	SourcePhase float64    // oscillator phase accumulator, rad
	BufIndex    int        // pulse buffer index, wraps modulo pulse period
}

// NewState allocates a zeroed state sized for the given model.
func NewState(model *mech.Discrete) *State {
	return &State{Mech: model.NewState()}
}

// Reset zeroes every field in place.
func (s *State) Reset() {
	s.Voltage = 0
	for i := range s.Mech {
		s.Mech[i] = [2]float64{}
	}
	s.Detuning = 0
	s.SourcePhase = 0
	s.BufIndex = 0
}

// StepInput carries one integration step's inputs. Step is a pure
// function of it and the discrete mechanical model.
type StepInput struct {
	HalfBandwidth   float64    // wh = pi*f0/QL, rad/s
	DetuningPrior   float64    // total detuning of the previous step, rad/s
	DetuningPerturb float64    // injected microphonics sample, rad/s
	Forward         complex128 // amplified forward drive sample
	Beam            complex128 // beam-induced voltage vb = -RL*ib
	Voltage         complex128 // previous cavity voltage
	Dt              float64
	Beta            float64    // coupling coefficient
	Mech            mech.State // previous mechanical state
}

// StepResult is one step's integrator output.
type StepResult struct {
	Voltage   complex128
	Reflected complex128
	Detuning  float64
	Mech      mech.State
}

// Step advances the cavity by one sample interval:
//
//	vc' = (1 - Dt*(wh - i*dwPrior))*vc + 2*wh*Dt*(beta*vf/(beta+1) + vb/2)
//	vr  = vc' - vf
//
// The mechanical model is driven by the squared voltage magnitude in
// MV^2; the returned detuning is the injected perturbation plus the
// mechanical contribution.
func Step(in StepInput, model *mech.Discrete) (StepResult, error) {
	if in.Dt <= 0 {
		return StepResult{}, fmt.Errorf("cavity: timestep must be positive, got %g", in.Dt)
	}
	if !finite(in.Forward) || !finite(in.Beam) || !finite(in.Voltage) ||
		math.IsNaN(in.DetuningPrior) || math.IsInf(in.DetuningPrior, 0) ||
		math.IsNaN(in.DetuningPerturb) || math.IsInf(in.DetuningPerturb, 0) {
		return StepResult{}, ErrNonFinite
	}

	factor := complex(1-in.Dt*in.HalfBandwidth, in.Dt*in.DetuningPrior)
	coupled := complex(in.Beta/(in.Beta+1), 0)*in.Forward + in.Beam/2
	vc := factor*in.Voltage + complex(2*in.HalfBandwidth*in.Dt, 0)*coupled
	vr := vc - in.Forward

	magMV := cmplx.Abs(vc) * 1e-6
	mechState, dwMech, err := model.Step(in.Mech, magMV*magMV)
	if err != nil {
		return StepResult{}, err
	}

	dw := in.DetuningPerturb + dwMech
	if !finite(vc) || !finite(vr) || math.IsNaN(dw) || math.IsInf(dw, 0) {
		return StepResult{}, ErrNonFinite
	}

	return StepResult{Voltage: vc, Reflected: vr, Detuning: dw, Mech: mechState}, nil
}

func finite(c complex128) bool {
	return !cmplx.IsNaN(c) && !cmplx.IsInf(c)
}
