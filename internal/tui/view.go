package tui

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/llrflab/cavsim/internal/history"
)

const traceLen = 120

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(cyan.Render("cavsim") + dim.Render("  virtual SRF cavity console") + "\n\n")
	b.WriteString(m.statusLine() + "\n\n")
	b.WriteString(m.paramPanel())
	b.WriteString("\n")
	b.WriteString(m.readoutPanel())
	b.WriteString("\n")
	b.WriteString(m.tracePanel())
	if m.lastScan != nil {
		b.WriteString("\n")
		b.WriteString(m.scanPanel())
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("space start/stop  r reset  R record  p playback  [/] seek  tab scan param  s scan  w save  q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statusLine() string {
	mode := red.Render("STOPPED")
	switch {
	case m.player.IsActive():
		mode = yellow.Render("PLAYBACK")
	case m.drv.Running():
		mode = green.Render("RUNNING")
	}
	rec := ""
	if m.hist.Recording() {
		rec = red.Render(" REC")
	}
	return fmt.Sprintf("%s%s  %s  t=%.4fs  points=%d",
		mode, rec, dim.Render(m.status), m.drv.SimTime(), m.hist.Len())
}

func (m Model) paramPanel() string {
	var b strings.Builder
	p := m.drv.Params()
	b.WriteString(white.Render("control parameters") + "\n")
	for i, row := range paramRows {
		marker := "  "
		style := dim
		if i == m.cursor {
			marker = cyan.Render("> ")
			style = white
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", marker,
			style.Render(fmt.Sprintf("%-18s", row.name)),
			style.Render(fmt.Sprintf("%12.5g", row.get(p)))))
	}
	pulsed := "CW"
	if p.Pulsed {
		pulsed = "PULSED"
	}
	b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", "mode (P)")), yellow.Render(pulsed)))
	return b.String()
}

// frame returns the sample shown in the readouts: the playback cursor
// frame while replaying, the newest live sample otherwise.
func (m Model) frame() (history.Sample, bool) {
	if m.player.IsActive() {
		return m.player.Frame()
	}
	return m.hist.Latest()
}

func (m Model) readoutPanel() string {
	sm, ok := m.frame()
	if !ok {
		return dim.Render("no samples yet")
	}
	line := fmt.Sprintf("Vc %8.3f MV   ∠ %7.2f°   Vr %8.3f MV   detuning %8.1f Hz",
		sm.VoltageMag()*1e-6, sm.VoltagePhaseDeg(), sm.ReflectedMag()*1e-6, sm.DetuningHz())
	if m.player.IsActive() {
		line += dim.Render(fmt.Sprintf("   frame %d/%d", m.player.Position()+1, m.hist.Len()))
	}
	return white.Render(line) + "\n"
}

func (m Model) tracePanel() string {
	mags := m.hist.TailMagnitudes(traceLen)
	if len(mags) < 2 {
		return ""
	}
	mv := make([]float64, len(mags))
	for i, v := range mags {
		mv[i] = v * 1e-6
	}
	graph := asciigraph.Plot(mv,
		asciigraph.Height(8),
		asciigraph.Width(min(m.width-12, traceLen)),
		asciigraph.Caption("cavity voltage |Vc| (MV)"))
	return graph + "\n"
}

func (m Model) scanPanel() string {
	points := m.lastScan.Points
	if len(points) < 2 {
		return ""
	}
	resp := make([]float64, len(points))
	for i, pt := range points {
		resp[i] = pt.Response * 1e-6
	}
	graph := asciigraph.Plot(resp,
		asciigraph.Height(6),
		asciigraph.Width(min(m.width-12, traceLen)),
		asciigraph.Caption(fmt.Sprintf("scan %s: [%g, %g] -> |Vc| (MV)",
			m.lastScan.Parameter, points[0].Value, points[len(points)-1].Value)))
	return graph + "\n"
}
