package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/moe-hybrid/moe/report"
	"github.com/inference-sim/moe-hybrid/moe/timing"
)

// AnalysisConfig represents the analysis YAML file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type AnalysisConfig struct {
	ExpertCount int       `yaml:"expert_count"` // default order length when the stats file is missing
	Strict      bool      `yaml:"strict"`       // fail on experts without timing records
	Workers     int       `yaml:"workers"`      // parallel sweep width; <= 1 is sequential
	NPU         NPUConfig `yaml:"npu"`
	PIM         PIMConfig `yaml:"pim"`
}

// NPUConfig describes how NPU trace cycles are normalized and labeled.
type NPUConfig struct {
	ComputeDivisor int64  `yaml:"compute_divisor"`
	UnitsNote      string `yaml:"units_note"`
	MaxMACNote     string `yaml:"max_mac_note"`
}

// PIMConfig describes how PIM trace cycles are normalized and labeled.
type PIMConfig struct {
	FCDivisor  int64  `yaml:"fc_divisor"`
	UnitsNote  string `yaml:"units_note"`
	MaxMACNote string `yaml:"max_mac_note"`
}

// DefaultAnalysisConfig returns the configuration used when no file is given.
func DefaultAnalysisConfig() AnalysisConfig {
	scaling := timing.DefaultScaling()
	npuNote, pimNote := report.DefaultNPUNote(), report.DefaultPIMNote()
	return AnalysisConfig{
		ExpertCount: 64,
		Workers:     1,
		NPU: NPUConfig{
			ComputeDivisor: scaling.NPUComputeDivisor,
			UnitsNote:      npuNote.Units,
			MaxMACNote:     npuNote.MaxMAC,
		},
		PIM: PIMConfig{
			FCDivisor:  scaling.PIMFCDivisor,
			UnitsNote:  pimNote.Units,
			MaxMACNote: pimNote.MaxMAC,
		},
	}
}

// loadAnalysisConfig parses path over the defaults. An empty path returns the defaults.
// Uses strict field checking: typos must cause errors.
func loadAnalysisConfig(path string) (AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading analysis config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing analysis config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("analysis config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c AnalysisConfig) Validate() error {
	if c.ExpertCount < 0 {
		return fmt.Errorf("expert_count must be non-negative, got %d", c.ExpertCount)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return c.Scaling().Validate()
}

// Scaling returns the trace normalization divisors.
func (c AnalysisConfig) Scaling() timing.Scaling {
	return timing.Scaling{NPUComputeDivisor: c.NPU.ComputeDivisor, PIMFCDivisor: c.PIM.FCDivisor}
}

// NPUNote returns the NPU table header.
func (c AnalysisConfig) NPUNote() report.DeviceNote {
	return report.DeviceNote{Units: c.NPU.UnitsNote, MaxMAC: c.NPU.MaxMACNote}
}

// PIMNote returns the PIM table header.
func (c AnalysisConfig) PIMNote() report.DeviceNote {
	return report.DeviceNote{Units: c.PIM.UnitsNote, MaxMAC: c.PIM.MaxMACNote}
}
