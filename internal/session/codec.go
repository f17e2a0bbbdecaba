package session

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/rf"
)

// WriteCSV emits the tabular encoding: one row per sample with the fixed
// columns time, vc_mag, vc_phase, vr_mag, detuning (Hz) and one column
// per mechanical mode. Floats are written at full shortest-exact
// precision so the encoding round-trips.
func WriteCSV(w io.Writer, snap *history.Snapshot) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"time", "vc_mag", "vc_phase", "vr_mag", "detuning"}
	for i := range snap.Modes {
		header = append(header, fmt.Sprintf("mech_mode_%d", i+1))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, sm := range snap.Samples {
		row := []string{
			ff(sm.Time),
			ff(sm.VoltageMag()),
			ff(sm.VoltagePhaseDeg()),
			ff(sm.ReflectedMag()),
			ff(sm.DetuningHz()),
		}
		for m := range snap.Modes {
			row = append(row, ff(snap.Modes[m][i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the tabular encoding into a fresh history store. The
// cavity voltage is reconstructed from magnitude and phase; the reflected
// voltage carries magnitude only (phase is not part of the tabular
// column set).
func ReadCSV(r io.Reader) (*history.Store, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("session: malformed csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("session: empty csv")
	}

	header := records[0]
	if len(header) < 5 || header[0] != "time" {
		return nil, fmt.Errorf("session: unexpected csv header %q", strings.Join(header, ","))
	}
	modeCount := len(header) - 5

	store := history.New(storeCapacity(len(records)-1), modeCount)
	for n, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("session: row %d has %d fields, want %d", n+1, len(rec), len(header))
		}
		vals := make([]float64, len(rec))
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("session: row %d field %d: %w", n+1, i, err)
			}
			vals[i] = v
		}
		sm := history.Sample{
			Time:      vals[0],
			Voltage:   cmplx.Rect(vals[1], vals[2]*math.Pi/180),
			Reflected: complex(vals[3], 0),
			Detuning:  vals[4] * 2 * math.Pi,
		}
		if err := store.Append(sm, vals[5:], rf.Params{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// document is the structured encoding: metadata plus the full channel
// set, complex channels split into real/imaginary parts.
type document struct {
	Metadata *Meta `json:"metadata,omitempty"`
	Data     struct {
		Time     []float64    `json:"time"`
		VcRe     []float64    `json:"vc_real"`
		VcIm     []float64    `json:"vc_imag"`
		VrRe     []float64    `json:"vr_real"`
		VrIm     []float64    `json:"vr_imag"`
		Detuning []float64    `json:"detuning"`
		Modes    [][]float64  `json:"mech_modes"`
		Params   []*rf.Params `json:"control_params"`
	} `json:"data"`
}

// WriteJSON emits the structured encoding. meta may be nil.
func WriteJSON(w io.Writer, meta *Meta, snap *history.Snapshot) error {
	doc := document{Metadata: meta}
	n := len(snap.Samples)
	doc.Data.Time = make([]float64, n)
	doc.Data.VcRe = make([]float64, n)
	doc.Data.VcIm = make([]float64, n)
	doc.Data.VrRe = make([]float64, n)
	doc.Data.VrIm = make([]float64, n)
	doc.Data.Detuning = make([]float64, n)
	doc.Data.Modes = snap.Modes
	doc.Data.Params = snap.Params
	if doc.Data.Modes == nil {
		doc.Data.Modes = [][]float64{}
	}

	for i, sm := range snap.Samples {
		doc.Data.Time[i] = sm.Time
		doc.Data.VcRe[i] = real(sm.Voltage)
		doc.Data.VcIm[i] = imag(sm.Voltage)
		doc.Data.VrRe[i] = real(sm.Reflected)
		doc.Data.VrIm[i] = imag(sm.Reflected)
		doc.Data.Detuning[i] = sm.Detuning
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadJSON parses the structured encoding into a fresh history store.
func ReadJSON(r io.Reader) (*history.Store, *Meta, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("session: malformed json: %w", err)
	}

	n := len(doc.Data.Time)
	for name, ch := range map[string][]float64{
		"vc_real": doc.Data.VcRe, "vc_imag": doc.Data.VcIm,
		"vr_real": doc.Data.VrRe, "vr_imag": doc.Data.VrIm,
		"detuning": doc.Data.Detuning,
	} {
		if len(ch) != n {
			return nil, nil, fmt.Errorf("session: channel %s has %d values, want %d", name, len(ch), n)
		}
	}
	for m, ch := range doc.Data.Modes {
		if len(ch) != n {
			return nil, nil, fmt.Errorf("session: mode channel %d has %d values, want %d", m, len(ch), n)
		}
	}
	if doc.Data.Params != nil && len(doc.Data.Params) != n {
		return nil, nil, fmt.Errorf("session: params channel has %d values, want %d", len(doc.Data.Params), n)
	}

	store := history.New(storeCapacity(n), len(doc.Data.Modes))
	modeVals := make([]float64, len(doc.Data.Modes))
	for i := 0; i < n; i++ {
		sm := history.Sample{
			Time:      doc.Data.Time[i],
			Voltage:   complex(doc.Data.VcRe[i], doc.Data.VcIm[i]),
			Reflected: complex(doc.Data.VrRe[i], doc.Data.VrIm[i]),
			Detuning:  doc.Data.Detuning[i],
		}
		for m := range doc.Data.Modes {
			modeVals[m] = doc.Data.Modes[m][i]
		}
		var p rf.Params
		recorded := doc.Data.Params != nil && doc.Data.Params[i] != nil
		if recorded {
			p = *doc.Data.Params[i]
		}
		store.SetRecording(recorded)
		if err := store.Append(sm, modeVals, p); err != nil {
			return nil, nil, err
		}
	}
	store.SetRecording(false)
	return store, doc.Metadata, nil
}

// storeCapacity sizes a loaded store: at least the default so a loaded
// session can keep growing, and never smaller than the data.
func storeCapacity(n int) int {
	if n > history.DefaultCapacity {
		return n
	}
	return history.DefaultCapacity
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
