// Package scan sweeps one control parameter across a range and records
// the quasi-steady-state cavity response per setpoint.
package scan

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/llrflab/cavsim/internal/rf"
	"github.com/llrflab/cavsim/internal/sim"
)

// ErrInvalidRange rejects a scan before any stepping occurs.
var ErrInvalidRange = errors.New("scan: min must be less than max")

// Parameter names a sweepable control parameter.
type Parameter string

const (
	Amplitude   Parameter = "amplitude"
	Phase       Parameter = "phase"
	FreqOffset  Parameter = "freq_offset"
	BeamCurrent Parameter = "beam_current"
)

// Parameters lists the sweepable parameters in display order.
func Parameters() []Parameter {
	return []Parameter{Amplitude, Phase, FreqOffset, BeamCurrent}
}

func (p Parameter) apply(params *rf.Params, v float64) error {
	switch p {
	case Amplitude:
		params.Amplitude = v
	case Phase:
		params.PhaseDeg = v
	case FreqOffset:
		params.FreqOffsetHz = v
	case BeamCurrent:
		params.BeamCurrentA = v
	default:
		return fmt.Errorf("scan: unknown parameter %q", p)
	}
	return nil
}

// Point is one swept setpoint and its settled response, the cavity
// voltage magnitude after the settling window.
type Point struct {
	Value    float64 `json:"value"`
	Response float64 `json:"response"`
}

// Result is one sweep in ascending setpoint order.
type Result struct {
	Parameter Parameter `json:"parameter"`
	Points    []Point   `json:"points"`
}

// Options tune the sweep resolution and settling window.
type Options struct {
	NumPoints   int // default 20
	SettleSteps int // default 100
}

func (o Options) withDefaults() Options {
	if o.NumPoints <= 0 {
		o.NumPoints = 20
	}
	if o.SettleSteps <= 0 {
		o.SettleSteps = 100
	}
	return o
}

// Controller runs scans against a live driver without perturbing it:
// every setpoint steps a fresh disposable cavity state with microphonics
// disabled, and the live parameters are only read.
type Controller struct {
	drv *sim.Driver
}

func NewController(drv *sim.Driver) *Controller {
	return &Controller{drv: drv}
}

// Scan sweeps param over numPoints evenly spaced setpoints covering
// [min, max] inclusive. min >= max fails with ErrInvalidRange before any
// stepping. Cancellation is observed between setpoints.
func (c *Controller) Scan(ctx context.Context, param Parameter, min, max float64, opts Options) (*Result, error) {
	if min >= max {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, min, max)
	}
	opts = opts.withDefaults()

	template := c.drv.Params()
	if err := param.apply(&template, min); err != nil {
		return nil, err
	}

	cfg := c.drv.Config()
	cfg.NoiseStd = 0 // settled responses must be reproducible

	result := &Result{
		Parameter: param,
		Points:    make([]Point, 0, opts.NumPoints),
	}

	for i := 0; i < opts.NumPoints; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		value := min + float64(i)*(max-min)/float64(opts.NumPoints-1)
		if i == opts.NumPoints-1 {
			value = max
		}

		p := template
		if err := param.apply(&p, value); err != nil {
			return result, err
		}

		response, err := c.settle(cfg, p, opts.SettleSteps)
		if err != nil {
			return result, fmt.Errorf("scan: setpoint %s=%g: %w", param, value, err)
		}
		result.Points = append(result.Points, Point{Value: value, Response: response})
	}

	return result, nil
}

// settle runs a disposable stepper for the settling window and returns
// the final cavity voltage magnitude.
func (c *Controller) settle(cfg sim.Config, p rf.Params, steps int) (float64, error) {
	st := sim.NewStepper(cfg, c.drv.Model())
	var last complex128
	for i := 0; i < steps; i++ {
		sample, err := st.Step(p)
		if err != nil {
			return 0, err
		}
		last = sample.Voltage
	}
	return cmplx.Abs(last), nil
}
