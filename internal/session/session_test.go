package session_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/rf"
	"github.com/llrflab/cavsim/internal/session"
	"github.com/llrflab/cavsim/internal/sim"
)

// filledStore builds a small history with two mode channels and a
// recording window in the middle.
func filledStore(n int) *history.Store {
	s := history.New(n+10, 2)
	p := rf.Params{Amplitude: 1.25, PhaseDeg: -30, FreqOffsetHz: -460, BeamCurrentA: 0.008, GainDB: 120}
	for i := 0; i < n; i++ {
		if i == n/3 {
			s.SetRecording(true)
		}
		if i == 2*n/3 {
			s.SetRecording(false)
		}
		sm := history.Sample{
			Time:      float64(i) * 1e-6,
			Voltage:   complex(float64(i)*1e5, -float64(i)*2e4),
			Reflected: complex(-float64(i)*3e4, float64(i)*1e4),
			Detuning:  2 * math.Pi * (float64(i) - 50),
		}
		Expect(s.Append(sm, []float64{float64(i) * 0.1, -float64(i) * 0.2}, p)).To(Succeed())
	}
	s.SetRecording(false)
	return s
}

var _ = Describe("CSV codec", func() {
	It("round-trips every scalar channel", func() {
		src := filledStore(40)
		var buf bytes.Buffer
		Expect(session.WriteCSV(&buf, src.Snapshot())).To(Succeed())

		loaded, err := session.ReadCSV(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Len()).To(Equal(40))
		Expect(loaded.ModeCount()).To(Equal(2))

		for i := 0; i < 40; i++ {
			want, _ := src.At(i)
			got, ok := loaded.At(i)
			Expect(ok).To(BeTrue())
			Expect(got.Time).To(BeNumerically("~", want.Time, 1e-9*math.Abs(want.Time)+1e-15))
			Expect(got.VoltageMag()).To(BeNumerically("~", want.VoltageMag(), 1e-9*want.VoltageMag()+1e-9))
			Expect(got.VoltagePhaseDeg()).To(BeNumerically("~", want.VoltagePhaseDeg(), 1e-9))
			Expect(got.ReflectedMag()).To(BeNumerically("~", want.ReflectedMag(), 1e-9*want.ReflectedMag()+1e-9))
			Expect(got.Detuning).To(BeNumerically("~", want.Detuning, 1e-9))

			wantModes, _ := src.ModeValuesAt(i)
			gotModes, ok := loaded.ModeValuesAt(i)
			Expect(ok).To(BeTrue())
			Expect(gotModes).To(Equal(wantModes))
		}
	})

	It("stores the detuning column in Hz", func() {
		s := history.New(10, 0)
		sm := history.Sample{Detuning: 2 * math.Pi * 25}
		Expect(s.Append(sm, nil, rf.Params{})).To(Succeed())

		var buf bytes.Buffer
		Expect(session.WriteCSV(&buf, s.Snapshot())).To(Succeed())
		rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
		fields := strings.Split(rows[1], ",")
		hz, err := strconv.ParseFloat(fields[4], 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(hz).To(BeNumerically("~", 25, 1e-9))

		loaded, err := session.ReadCSV(strings.NewReader(buf.String()))
		Expect(err).NotTo(HaveOccurred())
		got, ok := loaded.At(0)
		Expect(ok).To(BeTrue())
		Expect(got.DetuningHz()).To(BeNumerically("~", 25, 1e-9))
	})

	It("writes one mode column per mechanical mode", func() {
		var buf bytes.Buffer
		Expect(session.WriteCSV(&buf, filledStore(3).Snapshot())).To(Succeed())
		header := strings.SplitN(buf.String(), "\n", 2)[0]
		Expect(header).To(Equal("time,vc_mag,vc_phase,vr_mag,detuning,mech_mode_1,mech_mode_2"))
	})

	It("rejects an empty document", func() {
		_, err := session.ReadCSV(strings.NewReader(""))
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unexpected header", func() {
		_, err := session.ReadCSV(strings.NewReader("a,b,c\n1,2,3\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects non-numeric fields", func() {
		doc := "time,vc_mag,vc_phase,vr_mag,detuning\n1,2,oops,4,5\n"
		_, err := session.ReadCSV(strings.NewReader(doc))
		Expect(err).To(MatchError(ContainSubstring("field")))
	})
})

var _ = Describe("JSON codec", func() {
	It("round-trips complex channels and the recording window exactly", func() {
		src := filledStore(30)
		meta := &session.Meta{ID: "test", Ts: 1e-6, F0: 1.3e9, Samples: 30}

		var buf bytes.Buffer
		Expect(session.WriteJSON(&buf, meta, src.Snapshot())).To(Succeed())

		loaded, gotMeta, err := session.ReadJSON(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotMeta).NotTo(BeNil())
		Expect(gotMeta.ID).To(Equal("test"))
		Expect(loaded.Len()).To(Equal(30))

		srcSnap := src.Snapshot()
		gotSnap := loaded.Snapshot()
		Expect(gotSnap.Samples).To(Equal(srcSnap.Samples))
		Expect(gotSnap.Modes).To(Equal(srcSnap.Modes))
		for i := range srcSnap.Params {
			if srcSnap.Params[i] == nil {
				Expect(gotSnap.Params[i]).To(BeNil())
			} else {
				Expect(gotSnap.Params[i]).NotTo(BeNil())
				Expect(*gotSnap.Params[i]).To(Equal(*srcSnap.Params[i]))
			}
		}
	})

	It("rejects length-mismatched channels", func() {
		doc := `{"data":{"time":[1,2],"vc_real":[1],"vc_imag":[0,0],` +
			`"vr_real":[0,0],"vr_imag":[0,0],"detuning":[0,0],"mech_modes":[]}}`
		_, _, err := session.ReadJSON(strings.NewReader(doc))
		Expect(err).To(MatchError(ContainSubstring("vc_real")))
	})

	It("rejects malformed documents", func() {
		_, _, err := session.ReadJSON(strings.NewReader("{not json"))
		Expect(err).To(MatchError(ContainSubstring("malformed")))
	})

	It("loads an empty but well-formed document", func() {
		var buf bytes.Buffer
		Expect(session.WriteJSON(&buf, nil, history.New(10, 0).Snapshot())).To(Succeed())
		loaded, meta, err := session.ReadJSON(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta).To(BeNil())
		Expect(loaded.Len()).To(BeZero())
	})
})

var _ = Describe("Store", func() {
	var (
		dir   string
		store *session.Store
		cfg   sim.Config
		modes mech.ModeSet
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		store = session.New(dir)
		Expect(store.Init()).To(Succeed())
		cfg = sim.DefaultConfig()
		modes = mech.DefaultModes()
	})

	It("saves and reloads a session", func() {
		src := filledStore(25)
		id, err := store.Save(src, cfg, modes)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		loaded, meta, err := store.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.ID).To(Equal(id))
		Expect(meta.Ts).To(Equal(cfg.Ts))
		Expect(meta.F0).To(Equal(cfg.F0))
		Expect(meta.Modes).To(Equal(modes))
		Expect(meta.Samples).To(Equal(25))
		Expect(loaded.Len()).To(Equal(25))
	})

	It("writes both encodings plus metadata", func() {
		id, err := store.Save(filledStore(5), cfg, modes)
		Expect(err).NotTo(HaveOccurred())

		Expect(filepath.Join(dir, id, "metadata.json")).To(BeAnExistingFile())
		Expect(filepath.Join(dir, id, "channels.json")).To(BeAnExistingFile())
		Expect(store.CSVPath(id)).To(BeAnExistingFile())
	})

	It("lists saved sessions", func() {
		idA, err := store.Save(filledStore(5), cfg, modes)
		Expect(err).NotTo(HaveOccurred())
		idB, err := store.Save(filledStore(7), cfg, modes)
		Expect(err).NotTo(HaveOccurred())

		metas, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		ids := []string{metas[0].ID, metas[1].ID}
		Expect(ids).To(ConsistOf(idA, idB))
	})

	It("lists nothing for a missing base directory", func() {
		metas, err := session.New(filepath.Join(dir, "missing")).List()
		Expect(err).NotTo(HaveOccurred())
		Expect(metas).To(BeEmpty())
	})

	It("skips directories with unreadable metadata", func() {
		Expect(os.MkdirAll(filepath.Join(dir, "broken"), 0755)).To(Succeed())
		id, err := store.Save(filledStore(5), cfg, modes)
		Expect(err).NotTo(HaveOccurred())

		metas, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(metas).To(HaveLen(1))
		Expect(metas[0].ID).To(Equal(id))
	})

	It("fails to load an unknown session", func() {
		_, _, err := store.Load("no-such-id")
		Expect(err).To(HaveOccurred())
	})
})
