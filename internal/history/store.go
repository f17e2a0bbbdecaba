// Package history provides the bounded multi-channel time series the
// simulation driver appends to and every consumer (display, recorder,
// playback, export) reads from.
package history

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/llrflab/cavsim/internal/rf"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 10000

// ErrChannelMismatch is a programming-error assertion: the per-mode
// values handed to Append do not match the mode count the store was
// created with. It must never occur in a correct driver.
var ErrChannelMismatch = errors.New("history: per-mode channel count mismatch")

// Sample is one step's canonical output record. Derived quantities
// (magnitude, phase) are computed on demand, never stored.
type Sample struct {
	Time      float64
	Voltage   complex128
	Reflected complex128
	Detuning  float64 // rad/s
}

func (s Sample) VoltageMag() float64      { return cmplx.Abs(s.Voltage) }
func (s Sample) VoltagePhaseDeg() float64 { return cmplx.Phase(s.Voltage) * 180 / math.Pi }
func (s Sample) ReflectedMag() float64    { return cmplx.Abs(s.Reflected) }
func (s Sample) DetuningHz() float64      { return s.Detuning / (2 * math.Pi) }

// Store is a fixed-capacity ring over parallel channels: the sample
// channels, one displacement channel per mechanical mode, and a params
// channel populated while recording is enabled. Appending at capacity
// evicts the oldest element of every channel in the same critical
// section, so readers never observe length-mismatched channels.
type Store struct {
	mu sync.RWMutex

	capacity  int
	modeCount int
	head      int
	count     int

	samples []Sample
	modes   [][]float64  // [modeCount][capacity]
	params  []*rf.Params // nil entries outside recording windows

	recording bool
}

// New creates an empty store. capacity <= 0 selects DefaultCapacity.
func New(capacity, modeCount int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	modes := make([][]float64, modeCount)
	for i := range modes {
		modes[i] = make([]float64, capacity)
	}
	return &Store{
		capacity:  capacity,
		modeCount: modeCount,
		samples:   make([]Sample, capacity),
		modes:     modes,
		params:    make([]*rf.Params, capacity),
	}
}

// Append adds one step's outputs to every channel, evicting the oldest
// entry first when at capacity. The params snapshot is retained only
// while recording is enabled; a nil marker keeps the channels aligned
// otherwise. O(1).
func (s *Store) Append(sm Sample, modeVals []float64, p rf.Params) error {
	if len(modeVals) != s.modeCount {
		return fmt.Errorf("%w: got %d values, want %d", ErrChannelMismatch, len(modeVals), s.modeCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.head + s.count) % s.capacity
	if s.count == s.capacity {
		s.head = (s.head + 1) % s.capacity // evicts index 0 of every channel
	} else {
		s.count++
	}

	s.samples[idx] = sm
	for i, v := range modeVals {
		s.modes[i][idx] = v
	}
	if s.recording {
		snap := p
		s.params[idx] = &snap
	} else {
		s.params[idx] = nil
	}
	return nil
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) Cap() int       { return s.capacity }
func (s *Store) ModeCount() int { return s.modeCount }

// Clear empties every channel.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.count = 0
	for i := range s.params {
		s.params[i] = nil
	}
}

// SetRecording toggles retention of control-parameter snapshots.
func (s *Store) SetRecording(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = on
}

func (s *Store) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// At returns the i-th oldest retained sample.
func (s *Store) At(i int) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= s.count {
		return Sample{}, false
	}
	return s.samples[(s.head+i)%s.capacity], true
}

// ModeValuesAt returns a copy of the per-mode displacements for the i-th
// oldest retained sample.
func (s *Store) ModeValuesAt(i int) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= s.count {
		return nil, false
	}
	idx := (s.head + i) % s.capacity
	vals := make([]float64, s.modeCount)
	for m := range s.modes {
		vals[m] = s.modes[m][idx]
	}
	return vals, true
}

// Snapshot is an ordered, immutable copy of every channel, taken under
// the read lock so no mid-eviction state is observable.
type Snapshot struct {
	Samples []Sample
	Modes   [][]float64 // [modeCount][len(Samples)]
	Params  []*rf.Params
}

// Snapshot copies all channels in append order.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Samples: make([]Sample, s.count),
		Modes:   make([][]float64, s.modeCount),
		Params:  make([]*rf.Params, s.count),
	}
	for m := range snap.Modes {
		snap.Modes[m] = make([]float64, s.count)
	}
	for i := 0; i < s.count; i++ {
		idx := (s.head + i) % s.capacity
		snap.Samples[i] = s.samples[idx]
		for m := range s.modes {
			snap.Modes[m][i] = s.modes[m][idx]
		}
		snap.Params[i] = s.params[idx]
	}
	return snap
}

// TailMagnitudes returns the cavity-voltage magnitudes of the newest n
// samples in chronological order, for live display.
func (s *Store) TailMagnitudes(n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > s.count {
		n = s.count
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := (s.head + s.count - n + i) % s.capacity
		out[i] = cmplx.Abs(s.samples[idx].Voltage)
	}
	return out
}

// Latest returns the newest sample, if any.
func (s *Store) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return Sample{}, false
	}
	return s.samples[(s.head+s.count-1)%s.capacity], true
}
