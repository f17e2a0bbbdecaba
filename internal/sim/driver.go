package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/rf"
)

// Pacing defaults: the background loop runs batches of steps between
// short sleeps so simulated time advances at a human-observable pace
// rather than as fast as the host allows.
const (
	defaultStepsPerTick = 100
	defaultTickInterval = 10 * time.Millisecond
)

// Driver owns the live cavity and runs the stepping loop on a dedicated
// goroutine. All parameter access and history reads are safe against the
// running loop; the cavity state itself is never handed out.
type Driver struct {
	mu      sync.Mutex
	stepper *Stepper
	params  rf.Params
	hist    *history.Store

	running bool
	stop    chan struct{}
	done    chan struct{}
	err     error

	stepsPerTick int
	tickInterval time.Duration
}

// Option adjusts driver pacing.
type Option func(*Driver)

// WithPacing sets how many steps run per wall-clock tick and the tick
// interval.
func WithPacing(steps int, interval time.Duration) Option {
	return func(d *Driver) {
		if steps > 0 {
			d.stepsPerTick = steps
		}
		if interval > 0 {
			d.tickInterval = interval
		}
	}
}

// NewDriver validates the configuration, builds the live stepper and
// wires it to the history store.
func NewDriver(cfg Config, model *mech.Discrete, hist *history.Store, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hist.ModeCount() != model.ModeCount() {
		return nil, fmt.Errorf("sim: history store has %d mode channels, model has %d",
			hist.ModeCount(), model.ModeCount())
	}
	d := &Driver{
		stepper:      NewStepper(cfg, model),
		params:       DefaultParams(),
		hist:         hist,
		stepsPerTick: defaultStepsPerTick,
		tickInterval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start transitions Stopped -> Running and spawns the stepping loop.
// Idempotent while running.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.err = nil
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(d.stop, d.done)
}

// Stop signals the loop and waits for it to exit at the next step-batch
// boundary. Idempotent while stopped.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop, done := d.stop, d.done
	d.mu.Unlock()

	close(stop)
	<-done
}

// Reset forces Stopped, zeroes the cavity state, oscillator phase and
// buffer index, clears the history store, and preserves the control
// parameters.
func (d *Driver) Reset() {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stepper.Reset()
	d.hist.Clear()
	d.err = nil
}

func (d *Driver) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		for i := 0; i < d.stepsPerTick; i++ {
			if err := d.Step(); err != nil {
				d.fail(err)
				return
			}
		}
	}
}

// fail records the step error and marks the driver stopped. Called only
// from the loop goroutine.
func (d *Driver) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.running = false
	d.mu.Unlock()
}

// Step executes exactly one simulation step: parameter snapshot, RF
// chain, microphonics draw, cavity integration, history append. Safe to
// call directly while the loop is stopped (tests, scans on the live
// instance are not supported — scans use disposable steppers).
func (d *Driver) Step() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stepLocked()
}

func (d *Driver) stepLocked() error {
	sample, err := d.stepper.Step(d.params)
	if err != nil {
		return err
	}
	modeVals, err := d.stepper.ModeValues()
	if err != nil {
		return err
	}
	return d.hist.Append(sample, modeVals, d.params)
}

// Params returns a snapshot of the control parameters.
func (d *Driver) Params() rf.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// SetParams replaces the control parameters; the next step observes the
// new snapshot.
func (d *Driver) SetParams(p rf.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = p
	return nil
}

// Running reports whether the stepping loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Err returns the error that stopped the loop, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// SimTime returns the accumulated simulated time in seconds.
func (d *Driver) SimTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stepper.SimTime()
}

func (d *Driver) History() *history.Store { return d.hist }
func (d *Driver) Config() Config          { return d.stepper.Config() }
func (d *Driver) Model() *mech.Discrete   { return d.stepper.Model() }
