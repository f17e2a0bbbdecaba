package rf

// Buffers holds the precomputed pulsed-mode envelopes: the beam current
// pulse and the baseband modulator gate. Both are fixed-length circular
// arrays indexed by the cavity's pulse buffer index, which wraps modulo
// PulseLen.
type Buffers struct {
	Beam []complex128
	Base []complex128

	// PulseLen is the pulse repetition period in steps. It may exceed the
	// envelope length; the gap reads as the clamped last element (zero).
	PulseLen int

	// CW scalars used when pulsed mode is off.
	BeamCW complex128
	GateCW complex128

	fill int
	flat int
}

// NewBuffers builds the envelopes: the beam pulse carries beamCurrent
// between fill and flat, the baseband gate is open up to flat.
func NewBuffers(size, fill, flat, pulseLen int, beamCurrent float64) *Buffers {
	b := &Buffers{
		Beam:     make([]complex128, size),
		Base:     make([]complex128, size),
		PulseLen: pulseLen,
		BeamCW:   0,
		GateCW:   1,
		fill:     fill,
		flat:     flat,
	}
	for i := 0; i < flat && i < size; i++ {
		b.Base[i] = 1.0
	}
	b.SetBeamCurrent(beamCurrent)
	return b
}

// SetBeamCurrent refills the fill..flat window of the beam pulse. Called
// whenever the beam current control parameter changes.
func (b *Buffers) SetBeamCurrent(ib float64) {
	for i := b.fill; i < b.flat && i < len(b.Beam); i++ {
		b.Beam[i] = complex(ib, 0)
	}
}

// BeamAt returns the beam envelope sample for the given index, clamping
// past-the-end indices to the last element.
func (b *Buffers) BeamAt(idx int) complex128 {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.Beam) {
		idx = len(b.Beam) - 1
	}
	return b.Beam[idx]
}
