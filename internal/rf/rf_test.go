package rf

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestSourcePhaseAccumulates(t *testing.T) {
	const (
		freq = -460.0
		dt   = 1e-6
	)
	pha := 0.0
	var sig complex128
	for i := 0; i < 3; i++ {
		sig, pha = Source(freq, 1.0, pha, dt)
	}

	want := 3 * 2 * math.Pi * freq * dt
	if math.Abs(pha-want) > 1e-12 {
		t.Errorf("expected phase %g after 3 steps, got %g", want, pha)
	}
	if math.Abs(cmplx.Abs(sig)-1.0) > 1e-12 {
		t.Errorf("expected unit magnitude, got %g", cmplx.Abs(sig))
	}
	if math.Abs(cmplx.Phase(sig)-pha) > 1e-12 {
		t.Errorf("expected signal phase %g, got %g", pha, cmplx.Phase(sig))
	}
}

func TestSourceAmplitude(t *testing.T) {
	sig, _ := Source(0, 2.5, 0, 1e-6)
	if math.Abs(cmplx.Abs(sig)-2.5) > 1e-12 {
		t.Errorf("expected magnitude 2.5, got %g", cmplx.Abs(sig))
	}
}

func TestModulateCW(t *testing.T) {
	out := Modulate(2+0i, false, []complex128{0, 0}, 1, 0)
	if out != 2+0i {
		t.Errorf("expected CW gate to pass signal, got %v", out)
	}
}

func TestModulatePulsed(t *testing.T) {
	base := []complex128{1, 0.5, 0}

	if out := Modulate(2+0i, true, base, 1, 1); out != 1+0i {
		t.Errorf("expected 1, got %v", out)
	}

	// Past-the-end indices clamp to the last element instead of erroring.
	if out := Modulate(2+0i, true, base, 1, 100); out != 0 {
		t.Errorf("expected clamped gate 0, got %v", out)
	}
	if out := Modulate(2+0i, true, base, 1, -5); out != 2+0i {
		t.Errorf("expected clamp to first element, got %v", out)
	}
}

func TestAmplifyGain(t *testing.T) {
	if out := Amplify(1+0i, 20); math.Abs(real(out)-10) > 1e-12 {
		t.Errorf("expected 20 dB to be x10, got %v", out)
	}
	if out := Amplify(3+4i, 0); out != 3+4i {
		t.Errorf("expected 0 dB identity, got %v", out)
	}
}

func TestBuffersWindows(t *testing.T) {
	b := NewBuffers(100, 10, 30, 200, 0.008)

	if b.Base[0] != 1 || b.Base[29] != 1 {
		t.Error("baseband gate must be open before t_flat")
	}
	if b.Base[30] != 0 {
		t.Error("baseband gate must be closed from t_flat on")
	}
	if b.Beam[9] != 0 {
		t.Error("beam must be zero before t_fill")
	}
	if b.Beam[10] != complex(0.008, 0) || b.Beam[29] != complex(0.008, 0) {
		t.Error("beam window must carry the beam current")
	}
	if b.Beam[30] != 0 {
		t.Error("beam must be zero from t_flat on")
	}
}

func TestBuffersSetBeamCurrent(t *testing.T) {
	b := NewBuffers(100, 10, 30, 200, 0.008)
	b.SetBeamCurrent(0.02)
	if b.Beam[15] != complex(0.02, 0) {
		t.Errorf("expected refilled window, got %v", b.Beam[15])
	}
}

func TestBuffersBeamAtClamps(t *testing.T) {
	b := NewBuffers(10, 0, 10, 20, 1)
	if got := b.BeamAt(500); got != b.Beam[9] {
		t.Errorf("expected clamp to last element, got %v", got)
	}
	if got := b.BeamAt(-3); got != b.Beam[0] {
		t.Errorf("expected clamp to first element, got %v", got)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Params
		wantErr bool
	}{
		{"valid", Params{Amplitude: 1, BeamCurrentA: 0.008}, false},
		{"negative amplitude", Params{Amplitude: -1}, true},
		{"negative beam", Params{BeamCurrentA: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
