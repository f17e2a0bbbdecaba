// Package config loads and saves the simulator's YAML configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/mech"
	"github.com/llrflab/cavsim/internal/rf"
	"github.com/llrflab/cavsim/internal/sim"
)

// Cavity groups the physical constants and buffer geometry.
type Cavity struct {
	Ts             float64 `yaml:"ts"`
	F0             float64 `yaml:"f0"`
	QL             float64 `yaml:"ql"`
	RoQ            float64 `yaml:"roq"`
	Beta           float64 `yaml:"beta"`
	MicrophonicsHz float64 `yaml:"microphonics_hz"`
	Seed           int64   `yaml:"seed"`
	BufSize        int     `yaml:"buf_size"`
	TFill          int     `yaml:"t_fill"`
	TFlat          int     `yaml:"t_flat"`
	PulseLen       int     `yaml:"pulse_len"`
}

// Pacing controls the background loop cadence.
type Pacing struct {
	StepsPerTick int           `yaml:"steps_per_tick"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Config is the full simulator configuration.
type Config struct {
	DataDir         string       `yaml:"data_dir"`
	HistoryCapacity int          `yaml:"history_capacity"`
	Cavity          Cavity       `yaml:"cavity"`
	Modes           mech.ModeSet `yaml:"mech_modes"`
	Params          rf.Params    `yaml:"params"`
	Pacing          Pacing       `yaml:"pacing"`
}

// Default returns the reference configuration: the 1.3 GHz cavity, five
// mechanical modes, CW drive at -460 Hz offset.
func Default() *Config {
	simCfg := sim.DefaultConfig()
	return &Config{
		DataDir:         ".cavsim",
		HistoryCapacity: history.DefaultCapacity,
		Cavity: Cavity{
			Ts:             simCfg.Ts,
			F0:             simCfg.F0,
			QL:             simCfg.QL,
			RoQ:            simCfg.RoQ,
			Beta:           simCfg.Beta,
			MicrophonicsHz: 10,
			Seed:           simCfg.Seed,
			BufSize:        simCfg.BufSize,
			TFill:          simCfg.TFill,
			TFlat:          simCfg.TFlat,
			PulseLen:       simCfg.PulseLen,
		},
		Modes:  mech.DefaultModes(),
		Params: sim.DefaultParams(),
		Pacing: Pacing{StepsPerTick: 100, TickInterval: 10 * time.Millisecond},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.Cavity.MicrophonicsHz < 0 {
		return fmt.Errorf("microphonics_hz must be non-negative, got %g", c.Cavity.MicrophonicsHz)
	}
	if err := c.Modes.Validate(); err != nil {
		return err
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	return c.SimConfig().Validate()
}

// SimConfig projects the configuration onto the engine's config type.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Ts:       c.Cavity.Ts,
		F0:       c.Cavity.F0,
		QL:       c.Cavity.QL,
		RoQ:      c.Cavity.RoQ,
		Beta:     c.Cavity.Beta,
		NoiseStd: 2 * math.Pi * c.Cavity.MicrophonicsHz,
		Seed:     c.Cavity.Seed,
		BufSize:  c.Cavity.BufSize,
		TFill:    c.Cavity.TFill,
		TFlat:    c.Cavity.TFlat,
		PulseLen: c.Cavity.PulseLen,
	}
}
