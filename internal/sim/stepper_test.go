package sim

import (
	"math"
	"testing"

	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/rf"
)

func testSetup(t *testing.T, cfg Config) (*Stepper, *mech.Discrete) {
	t.Helper()
	model, err := mech.Build(mech.DefaultModes(), cfg.Ts)
	if err != nil {
		t.Fatalf("mechanical model failed: %v", err)
	}
	return NewStepper(cfg, model), model
}

func TestStepperDeterministicWithoutNoise(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoiseStd = 0
	p := DefaultParams()

	a, _ := testSetup(t, cfg)
	b, _ := testSetup(t, cfg)

	for i := 0; i < 500; i++ {
		sa, err := a.Step(p)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		sb, err := b.Step(p)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if sa != sb {
			t.Fatalf("step %d diverged: %+v vs %+v", i, sa, sb)
		}
	}
}

// Two steppers with the same seed draw the same microphonics sequence.
func TestStepperSeededNoiseReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	p := DefaultParams()

	a, _ := testSetup(t, cfg)
	b, _ := testSetup(t, cfg)

	for i := 0; i < 200; i++ {
		sa, err := a.Step(p)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		sb, err := b.Step(p)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if sa.Detuning != sb.Detuning {
			t.Fatalf("step %d: seeded noise diverged (%g vs %g)", i, sa.Detuning, sb.Detuning)
		}
	}
}

func TestStepperRejectsBadParams(t *testing.T) {
	st, _ := testSetup(t, DefaultConfig())
	if _, err := st.Step(rf.Params{Amplitude: -1}); err == nil {
		t.Error("expected validation error for negative amplitude")
	}
	if st.SimTime() != 0 {
		t.Error("rejected step must not advance simulated time")
	}
}

func TestStepperNonFinitePropagates(t *testing.T) {
	st, _ := testSetup(t, DefaultConfig())
	p := DefaultParams()
	p.Amplitude = math.NaN()
	if _, err := st.Step(p); err == nil {
		t.Error("expected integrator error for NaN amplitude")
	}
}

func TestStepperPulsedIndexWraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoiseStd = 0
	cfg.BufSize = 8
	cfg.TFill = 2
	cfg.TFlat = 6
	cfg.PulseLen = 10

	st, _ := testSetup(t, cfg)
	p := DefaultParams()
	p.Pulsed = true

	for i := 0; i < 25; i++ {
		if _, err := st.Step(p); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if idx := st.State().BufIndex; idx < 0 || idx >= cfg.PulseLen {
			t.Fatalf("step %d: buffer index %d outside [0, %d)", i, idx, cfg.PulseLen)
		}
	}
	// 25 steps of a period-10 counter starting from 0: 1..9,0,1..9,0,1..5
	if idx := st.State().BufIndex; idx != 5 {
		t.Errorf("expected buffer index 5 after 25 pulsed steps, got %d", idx)
	}
}

func TestStepperCWIndexFrozen(t *testing.T) {
	st, _ := testSetup(t, DefaultConfig())
	p := DefaultParams()
	p.Pulsed = false

	for i := 0; i < 10; i++ {
		if _, err := st.Step(p); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	if st.State().BufIndex != 0 {
		t.Errorf("CW stepping must not advance the pulse index, got %d", st.State().BufIndex)
	}
}

func TestStepperResetReproducesTrajectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	st, _ := testSetup(t, cfg)
	p := DefaultParams()

	first := make([]float64, 100)
	for i := range first {
		sm, err := st.Step(p)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		first[i] = sm.Detuning
	}

	st.Reset()
	if st.SimTime() != 0 {
		t.Fatal("reset must zero simulated time")
	}

	for i := range first {
		sm, err := st.Step(p)
		if err != nil {
			t.Fatalf("replay step %d failed: %v", i, err)
		}
		if sm.Detuning != first[i] {
			t.Fatalf("step %d: trajectory after reset diverged", i)
		}
	}
}

func TestStepperModeValues(t *testing.T) {
	st, model := testSetup(t, DefaultConfig())
	vals, err := st.ModeValues()
	if err != nil {
		t.Fatalf("mode values failed: %v", err)
	}
	if len(vals) != model.ModeCount() {
		t.Errorf("expected %d mode values, got %d", model.ModeCount(), len(vals))
	}
}

func TestConfigDerivedQuantities(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	wantRL := 0.5 * cfg.RoQ * cfg.QL
	if math.Abs(cfg.LoadResistance()-wantRL) > 1e-6*wantRL {
		t.Errorf("expected load resistance %g, got %g", wantRL, cfg.LoadResistance())
	}
	wantWh := math.Pi * cfg.F0 / cfg.QL
	if math.Abs(cfg.HalfBandwidth()-wantWh) > 1e-9*wantWh {
		t.Errorf("expected half bandwidth %g, got %g", wantWh, cfg.HalfBandwidth())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ts", func(c *Config) { c.Ts = 0 }},
		{"negative f0", func(c *Config) { c.F0 = -1 }},
		{"zero ql", func(c *Config) { c.QL = 0 }},
		{"fill after flat", func(c *Config) { c.TFill = c.TFlat + 1 }},
		{"flat past buffer", func(c *Config) { c.TFlat = c.BufSize + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
