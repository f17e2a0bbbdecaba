package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/llrflab/cavsim/internal/analysis"
	"github.com/llrflab/cavsim/internal/config"
	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/scan"
	"github.com/llrflab/cavsim/internal/session"
	"github.com/llrflab/cavsim/internal/sim"
	"github.com/llrflab/cavsim/internal/tui"
)

var (
	configFile string
	dataDir    string

	// run flags
	runSeconds float64
	runNoise   bool
	runSave    bool
	runPulsed  bool

	// scan flags
	scanPoints int
	scanSettle int

	// export flags
	exportFormat string

	// spectrum flags
	peakCount int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cavsim",
		Short: "virtual SRF cavity / LLRF training simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			drv, err := buildDriver(cfg)
			if err != nil {
				return err
			}
			return tui.Run(cfg, drv, session.New(cfg.DataDir))
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "session data directory (overrides config)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation",
		RunE:  runHeadless,
	}
	runCmd.Flags().Float64Var(&runSeconds, "time", 0.01, "simulated duration (s)")
	runCmd.Flags().BoolVar(&runNoise, "noise", true, "enable microphonics")
	runCmd.Flags().BoolVar(&runPulsed, "pulsed", false, "pulsed drive instead of CW")
	runCmd.Flags().BoolVar(&runSave, "save", false, "save the run as a session")

	scanCmd := &cobra.Command{
		Use:   "scan [parameter] [min] [max]",
		Short: "sweep a control parameter and print the settled response",
		Args:  cobra.ExactArgs(3),
		RunE:  runScan,
	}
	scanCmd.Flags().IntVar(&scanPoints, "points", 20, "number of setpoints")
	scanCmd.Flags().IntVar(&scanSettle, "settle", 100, "settling steps per setpoint")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "list recorded sessions",
		RunE:  listSessions,
	}

	exportCmd := &cobra.Command{
		Use:   "export [session_id]",
		Short: "write a session's channels to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSession,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or json")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [session_id]",
		Short: "detuning amplitude spectrum of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSpectrum,
	}
	spectrumCmd.Flags().IntVar(&peakCount, "peaks", 5, "number of spectral peaks to report")

	rootCmd.AddCommand(runCmd, scanCmd, sessionsCmd, exportCmd, spectrumCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func buildDriver(cfg *config.Config) (*sim.Driver, error) {
	model, err := mech.Build(cfg.Modes, cfg.Cavity.Ts)
	if err != nil {
		return nil, fmt.Errorf("mechanical model init: %w", err)
	}
	hist := history.New(cfg.HistoryCapacity, model.ModeCount())
	drv, err := sim.NewDriver(cfg.SimConfig(), model, hist,
		sim.WithPacing(cfg.Pacing.StepsPerTick, cfg.Pacing.TickInterval))
	if err != nil {
		return nil, err
	}
	if err := drv.SetParams(cfg.Params); err != nil {
		return nil, err
	}
	return drv, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !runNoise {
		cfg.Cavity.MicrophonicsHz = 0
	}
	cfg.Params.Pulsed = runPulsed

	drv, err := buildDriver(cfg)
	if err != nil {
		return err
	}

	steps := int(runSeconds / cfg.Cavity.Ts)
	start := time.Now()
	for i := 0; i < steps; i++ {
		if err := drv.Step(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	hist := drv.History()
	if sm, ok := hist.Latest(); ok {
		fmt.Printf("steps: %d (%.1fms wall)\n", steps, elapsed.Seconds()*1e3)
		fmt.Printf("final |Vc|: %.3f MV\n", sm.VoltageMag()*1e-6)
		fmt.Printf("final detuning: %.1f Hz\n", sm.DetuningHz())
	}

	if runSave {
		store := session.New(cfg.DataDir)
		if err := store.Init(); err != nil {
			return err
		}
		id, err := store.Save(hist, cfg.SimConfig(), cfg.Modes)
		if err != nil {
			return err
		}
		fmt.Printf("session: %s\n", id)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	drv, err := buildDriver(cfg)
	if err != nil {
		return err
	}

	var lo, hi float64
	if _, err := fmt.Sscanf(args[1]+" "+args[2], "%g %g", &lo, &hi); err != nil {
		return fmt.Errorf("invalid range %q..%q", args[1], args[2])
	}

	ctrl := scan.NewController(drv)
	result, err := ctrl.Scan(context.Background(), scan.Parameter(args[0]), lo, hi,
		scan.Options{NumPoints: scanPoints, SettleSteps: scanSettle})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t|Vc| (MV)\n", result.Parameter)
	for _, pt := range result.Points {
		fmt.Fprintf(w, "%g\t%.4f\n", pt.Value, pt.Response*1e-6)
	}
	return w.Flush()
}

func listSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	metas, err := session.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCAPTURED\tSAMPLES\tF0 (GHz)\tMODES")
	for _, meta := range metas {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\n",
			meta.ID, meta.Timestamp.Format(time.RFC3339), meta.Samples, meta.F0*1e-9, len(meta.Modes))
	}
	return w.Flush()
}

func exportSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := session.New(cfg.DataDir)
	hist, meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	snap := hist.Snapshot()
	switch exportFormat {
	case "csv":
		return session.WriteCSV(os.Stdout, snap)
	case "json":
		return session.WriteJSON(os.Stdout, meta, snap)
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", exportFormat)
	}
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := session.New(cfg.DataDir)
	hist, meta, err := store.Load(args[0])
	if err != nil {
		return err
	}

	snap := hist.Snapshot()
	detuning := make([]float64, len(snap.Samples))
	for i, sm := range snap.Samples {
		detuning[i] = sm.DetuningHz()
	}

	ts := cfg.Cavity.Ts
	if meta != nil && meta.Ts > 0 {
		ts = meta.Ts
	}
	lines, err := analysis.Spectrum(detuning, ts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FREQ (Hz)\tAMPLITUDE (Hz)")
	for _, pk := range analysis.Peaks(lines, peakCount) {
		fmt.Fprintf(w, "%.1f\t%.4g\n", pk.FreqHz, pk.Amplitude)
	}
	return w.Flush()
}
