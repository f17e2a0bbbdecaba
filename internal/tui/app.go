// Package tui is the interactive operator console: the foreground
// control surface over the simulation driver, history store, recorder,
// playback and scan controllers.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/llrflab/cavsim/internal/config"
	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/playback"
	"github.com/llrflab/cavsim/internal/rf"
	"github.com/llrflab/cavsim/internal/scan"
	"github.com/llrflab/cavsim/internal/session"
	"github.com/llrflab/cavsim/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// paramRow is one adjustable control parameter with its nudge step.
type paramRow struct {
	name string
	step float64
	get  func(rf.Params) float64
	set  func(*rf.Params, float64)
}

var paramRows = []paramRow{
	{"amplitude", 0.05,
		func(p rf.Params) float64 { return p.Amplitude },
		func(p *rf.Params, v float64) { p.Amplitude = max(v, 0) }},
	{"phase (deg)", 5,
		func(p rf.Params) float64 { return p.PhaseDeg },
		func(p *rf.Params, v float64) { p.PhaseDeg = v }},
	{"freq offset (Hz)", 20,
		func(p rf.Params) float64 { return p.FreqOffsetHz },
		func(p *rf.Params, v float64) { p.FreqOffsetHz = v }},
	{"beam current (A)", 0.001,
		func(p rf.Params) float64 { return p.BeamCurrentA },
		func(p *rf.Params, v float64) { p.BeamCurrentA = max(v, 0) }},
	{"gain (dB)", 1,
		func(p rf.Params) float64 { return p.GainDB },
		func(p *rf.Params, v float64) { p.GainDB = v }},
}

// scanRange is the default sweep range per scannable parameter.
var scanRanges = map[scan.Parameter][2]float64{
	scan.Amplitude:   {0.5, 1.5},
	scan.Phase:       {-180, 180},
	scan.FreqOffset:  {-2000, 2000},
	scan.BeamCurrent: {0, 0.02},
}

type Model struct {
	drv      *sim.Driver
	hist     *history.Store
	scanner  *scan.Controller
	player   *playback.Controller
	sessions *session.Store
	cfg      *config.Config

	cursor    int
	scanParam int
	scanning  bool
	lastScan  *scan.Result
	status    string

	width  int
	height int
}

func New(cfg *config.Config, drv *sim.Driver, sessions *session.Store) Model {
	return Model{
		drv:      drv,
		hist:     drv.History(),
		scanner:  scan.NewController(drv),
		player:   playback.NewController(drv, drv.History()),
		sessions: sessions,
		cfg:      cfg,
		status:   "ready",
		width:    100,
		height:   30,
	}
}

// Run starts the console; the driver begins stepping immediately.
func Run(cfg *config.Config, drv *sim.Driver, sessions *session.Store) error {
	drv.Start()
	defer drv.Stop()
	_, err := tea.NewProgram(New(cfg, drv, sessions), tea.WithAltScreen()).Run()
	return err
}

type tickMsg time.Time

type scanDoneMsg struct {
	result *scan.Result
	err    error
}

type saveDoneMsg struct {
	id  string
	err error
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.player.IsActive() {
			m.player.Advance(m.cfg.Pacing.StepsPerTick)
		}
		if err := m.drv.Err(); err != nil {
			m.status = "stopped: " + err.Error()
		}
		return m, tick()
	case scanDoneMsg:
		m.scanning = false
		if msg.err != nil {
			m.status = "scan failed: " + msg.err.Error()
		} else {
			m.lastScan = msg.result
			m.status = fmt.Sprintf("scan complete: %d points", len(msg.result.Points))
		}
		return m, nil
	case saveDoneMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
		} else {
			m.status = "session saved: " + msg.id
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(paramRows)-1 {
			m.cursor++
		}
	case "left", "h":
		m.nudge(-1)
	case "right", "l":
		m.nudge(+1)

	case " ":
		if m.player.IsActive() {
			m.status = "stop playback first"
			break
		}
		if m.drv.Running() {
			m.drv.Stop()
			m.status = "stopped"
		} else {
			m.drv.Start()
			m.status = "running"
		}
	case "r":
		m.player.Stop()
		m.drv.Reset()
		m.status = "reset"
	case "R":
		on := !m.hist.Recording()
		m.hist.SetRecording(on)
		if on {
			m.status = "recording"
		} else {
			m.status = "recording off"
		}

	case "p":
		if m.player.IsActive() {
			m.player.Stop()
			m.status = "playback stopped"
		} else if err := m.player.Start(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "playback"
		}
	case "[":
		if m.player.IsActive() {
			m.player.Advance(-m.cfg.Pacing.StepsPerTick * 10)
		}
	case "]":
		if m.player.IsActive() {
			m.player.Advance(m.cfg.Pacing.StepsPerTick * 10)
		}

	case "tab":
		m.scanParam = (m.scanParam + 1) % len(scan.Parameters())
	case "s":
		if m.scanning {
			break
		}
		m.scanning = true
		param := scan.Parameters()[m.scanParam]
		m.status = fmt.Sprintf("scanning %s...", param)
		return m, m.runScan(param)

	case "P":
		p := m.drv.Params()
		p.Pulsed = !p.Pulsed
		if err := m.drv.SetParams(p); err != nil {
			m.status = err.Error()
		}

	case "w":
		return m, m.saveSession()
	}
	return m, nil
}

func (m *Model) nudge(dir float64) {
	row := paramRows[m.cursor]
	p := m.drv.Params()
	row.set(&p, row.get(p)+dir*row.step)
	if err := m.drv.SetParams(p); err != nil {
		m.status = err.Error()
	}
}

// runScan launches the sweep on its own goroutine; the live loop keeps
// running because the scan steps disposable cavity state only.
func (m Model) runScan(param scan.Parameter) tea.Cmd {
	r := scanRanges[param]
	return func() tea.Msg {
		res, err := m.scanner.Scan(context.Background(), param, r[0], r[1], scan.Options{})
		return scanDoneMsg{result: res, err: err}
	}
}

func (m Model) saveSession() tea.Cmd {
	return func() tea.Msg {
		if err := m.sessions.Init(); err != nil {
			return saveDoneMsg{err: err}
		}
		id, err := m.sessions.Save(m.hist, m.cfg.SimConfig(), m.cfg.Modes)
		return saveDoneMsg{id: id, err: err}
	}
}
