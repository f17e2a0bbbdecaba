package mech

import (
	"fmt"
	"math"
)

// mat2 is a dense 2x2 matrix in row-major order.
type mat2 struct{ a, b, c, d float64 }

// vec2 is a length-2 column vector.
type vec2 struct{ x, y float64 }

func (m mat2) mulVec(v vec2) vec2 {
	return vec2{m.a*v.x + m.b*v.y, m.c*v.x + m.d*v.y}
}

func (m mat2) det() float64 { return m.a*m.d - m.b*m.c }

func (m mat2) inv() (mat2, error) {
	det := m.det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return mat2{}, fmt.Errorf("mech: singular state matrix (det=%g)", det)
	}
	return mat2{m.d / det, -m.b / det, -m.c / det, m.a / det}, nil
}

// expm returns e^M for a 2x2 matrix using the closed form
// e^M = e^mu * (cosh(q) I + sinh(q)/q * (M - mu I)), where mu is half the
// trace and q^2 = ((a-d)/2)^2 + bc. Negative q^2 switches cosh/sinh to
// cos/sin; q -> 0 takes the limit sinh(q)/q -> 1.
func (m mat2) expm() mat2 {
	mu := (m.a + m.d) / 2
	q2 := (m.a-m.d)*(m.a-m.d)/4 + m.b*m.c

	var ch, shq float64 // cosh(q), sinh(q)/q
	switch {
	case q2 > 1e-300:
		q := math.Sqrt(q2)
		ch = math.Cosh(q)
		shq = math.Sinh(q) / q
	case q2 < -1e-300:
		q := math.Sqrt(-q2)
		ch = math.Cos(q)
		shq = math.Sin(q) / q
	default:
		ch = 1
		shq = 1
	}

	emu := math.Exp(mu)
	n := mat2{m.a - mu, m.b, m.c, m.d - mu}
	return mat2{
		emu * (ch + shq*n.a), emu * shq * n.b,
		emu * shq * n.c, emu * (ch + shq*n.d),
	}
}

// block is one mode's continuous-time state-space realization.
type block struct {
	A mat2
	B vec2
	C vec2
}

// Continuous holds the block-diagonal continuous-time model (A, B, C, D)
// of a mode set. D is identically zero.
type Continuous struct {
	modes  ModeSet
	blocks []block
}

// NewContinuous builds the continuous-time state-space model for the mode
// set. Called once at startup; an invalid mode set is fatal to
// initialization.
func NewContinuous(ms ModeSet) (*Continuous, error) {
	if err := ms.Validate(); err != nil {
		return nil, err
	}
	blocks := make([]block, len(ms))
	for i, m := range ms {
		w := 2 * math.Pi * m.FreqHz
		blocks[i] = block{
			A: mat2{0, 1, -w * w, -w / m.Q},
			B: vec2{0, m.K * w * w},
			C: vec2{-2 * math.Pi, 0},
		}
	}
	return &Continuous{modes: ms, blocks: blocks}, nil
}

// discBlock is one mode's zero-order-hold discretization.
type discBlock struct {
	Ad mat2
	Bd vec2
	C  vec2
}

// Discrete is the discrete-time model (Ad, Bd, Cd, Dd) over a fixed
// sample interval, immutable after construction.
type Discrete struct {
	modes  ModeSet
	ts     float64
	blocks []discBlock
}

// Discretize converts the continuous model to discrete time by exact
// zero-order hold: Ad = e^(A*Ts), Bd = A^-1 (Ad - I) B.
func Discretize(cm *Continuous, ts float64) (*Discrete, error) {
	if ts <= 0 {
		return nil, fmt.Errorf("mech: timestep must be positive, got %g", ts)
	}
	blocks := make([]discBlock, len(cm.blocks))
	for i, blk := range cm.blocks {
		at := mat2{blk.A.a * ts, blk.A.b * ts, blk.A.c * ts, blk.A.d * ts}
		ad := at.expm()
		ainv, err := blk.A.inv()
		if err != nil {
			return nil, fmt.Errorf("mech: mode %d: %w", i, err)
		}
		adMinusI := mat2{ad.a - 1, ad.b, ad.c, ad.d - 1}
		bd := ainv.mulVec(adMinusI.mulVec(blk.B))
		for _, v := range []float64{ad.a, ad.b, ad.c, ad.d, bd.x, bd.y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("mech: mode %d: non-finite discretization", i)
			}
		}
		blocks[i] = discBlock{Ad: ad, Bd: bd, C: blk.C}
	}
	return &Discrete{modes: cm.modes, ts: ts, blocks: blocks}, nil
}

// Build constructs and discretizes the model in one call.
func Build(ms ModeSet, ts float64) (*Discrete, error) {
	cm, err := NewContinuous(ms)
	if err != nil {
		return nil, err
	}
	return Discretize(cm, ts)
}

// State is the mechanical state vector: displacement and velocity per
// mode. Index i corresponds to mode i of the originating ModeSet.
type State [][2]float64

// Displacement returns the per-mode displacement, the consumer-visible
// per-mode channel value.
func (s State) Displacement(i int) float64 { return s[i][0] }

func (d *Discrete) ModeCount() int  { return len(d.blocks) }
func (d *Discrete) Modes() ModeSet  { return d.modes }
func (d *Discrete) Ts() float64     { return d.ts }
func (d *Discrete) NewState() State { return make(State, len(d.blocks)) }

// Step advances every mode by one sample interval under input u (squared
// cavity voltage magnitude, MV^2) and returns the new state together with
// the summed detuning contribution in rad/s. It is a pure function of its
// inputs: the incoming state is not mutated.
func (d *Discrete) Step(st State, u float64) (State, float64, error) {
	if len(st) != len(d.blocks) {
		return nil, 0, fmt.Errorf("mech: state has %d modes, model has %d", len(st), len(d.blocks))
	}
	next := make(State, len(st))
	var dw float64
	for i, blk := range d.blocks {
		x := vec2{st[i][0], st[i][1]}
		ax := blk.Ad.mulVec(x)
		nx := vec2{ax.x + blk.Bd.x*u, ax.y + blk.Bd.y*u}
		next[i] = [2]float64{nx.x, nx.y}
		dw += blk.C.x*nx.x + blk.C.y*nx.y
	}
	if math.IsNaN(dw) || math.IsInf(dw, 0) {
		return nil, 0, fmt.Errorf("mech: non-finite detuning contribution")
	}
	return next, dw, nil
}
