package sim

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/llrflab/cavsim/internal/cavity"
	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/rf"
)

// Stepper owns one cavity state and executes the per-step pipeline
// source -> modulator -> amplifier -> cavity integrator. It is not safe
// for concurrent use; the Driver serializes access to the live instance,
// and scans build disposable ones.
type Stepper struct {
	cfg   Config
	model *mech.Discrete
	bufs  *rf.Buffers
	state *cavity.State
	rng   *rand.Rand

	simTime float64
}

// NewStepper builds a stepper with its own waveform buffers and a zeroed
// cavity state. cfg must already be validated.
func NewStepper(cfg Config, model *mech.Discrete) *Stepper {
	return &Stepper{
		cfg:   cfg,
		model: model,
		bufs:  rf.NewBuffers(cfg.BufSize, cfg.TFill, cfg.TFlat, cfg.PulseLen, 0),
		state: cavity.NewState(model),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Step executes one simulation step under the given parameter snapshot
// and returns the resulting sample. On integrator failure the cavity
// state is left untouched and the error is returned to the caller.
func (st *Stepper) Step(p rf.Params) (history.Sample, error) {
	if err := p.Validate(); err != nil {
		return history.Sample{}, err
	}

	st.bufs.SetBeamCurrent(p.BeamCurrentA)

	// Source oscillator with static phase offset.
	s0, pha := rf.Source(p.FreqOffsetHz, p.Amplitude, st.state.SourcePhase, st.cfg.Ts)
	s0 *= cmplx.Exp(complex(0, p.PhaseDeg*math.Pi/180))

	// The pulse index advances only in pulsed mode, wrapping at the
	// pulse repetition period.
	bufIdx := st.state.BufIndex
	if p.Pulsed {
		bufIdx++
		if bufIdx >= st.cfg.PulseLen {
			bufIdx = 0
		}
	}

	s1 := rf.Modulate(s0, p.Pulsed, st.bufs.Base, st.bufs.GateCW, bufIdx)
	s2 := rf.Amplify(s1, p.GainDB)

	var vb complex128
	if p.Pulsed {
		vb = complex(-st.cfg.LoadResistance(), 0) * st.bufs.BeamAt(bufIdx)
	} else {
		vb = complex(-st.cfg.LoadResistance()*p.BeamCurrentA, 0)
	}

	var dwMicr float64
	if st.cfg.NoiseStd != 0 {
		dwMicr = st.rng.NormFloat64() * st.cfg.NoiseStd
	}

	res, err := cavity.Step(cavity.StepInput{
		HalfBandwidth:   st.cfg.HalfBandwidth(),
		DetuningPrior:   st.state.Detuning,
		DetuningPerturb: dwMicr,
		Forward:         s2,
		Beam:            vb,
		Voltage:         st.state.Voltage,
		Dt:              st.cfg.Ts,
		Beta:            st.cfg.Beta,
		Mech:            st.state.Mech,
	}, st.model)
	if err != nil {
		return history.Sample{}, fmt.Errorf("sim: step at t=%.6es: %w", st.simTime, err)
	}

	st.state.Voltage = res.Voltage
	st.state.Detuning = res.Detuning
	st.state.Mech = res.Mech
	st.state.SourcePhase = pha
	st.state.BufIndex = bufIdx
	st.simTime += st.cfg.Ts

	return history.Sample{
		Time:      st.simTime,
		Voltage:   res.Voltage,
		Reflected: res.Reflected,
		Detuning:  res.Detuning,
	}, nil
}

// ModeValues copies the per-mode displacements out of the cavity state,
// checked against the model's mode count.
func (st *Stepper) ModeValues() ([]float64, error) {
	if len(st.state.Mech) != st.model.ModeCount() {
		return nil, fmt.Errorf("sim: mechanical state has %d modes, model has %d",
			len(st.state.Mech), st.model.ModeCount())
	}
	vals := make([]float64, st.model.ModeCount())
	for i := range vals {
		vals[i] = st.state.Mech.Displacement(i)
	}
	return vals, nil
}

// Reset zeroes the cavity state and simulated time and reseeds the noise
// source, so the subsequent trajectory matches a fresh instance.
func (st *Stepper) Reset() {
	st.state.Reset()
	st.simTime = 0
	st.rng = rand.New(rand.NewSource(st.cfg.Seed))
}

func (st *Stepper) SimTime() float64     { return st.simTime }
func (st *Stepper) State() *cavity.State { return st.state }
func (st *Stepper) Config() Config       { return st.cfg }
func (st *Stepper) Model() *mech.Discrete {
	return st.model
}
