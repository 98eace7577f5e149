// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Engine for YAML round-tripping. Durations are encoded
// as Go duration strings ("24h", "90s") so hand-edited files stay readable.
type fileConfig struct {
	Enabled            *bool         `yaml:"enabled"`
	Target             string        `yaml:"target"`
	Weights            Weights       `yaml:"weights"`
	Pruning            PruningPolicy `yaml:"pruning"`
	EvaluationInterval string        `yaml:"evaluation_interval"`
	AutoPrune          *bool         `yaml:"auto_prune"`
}

// Load reads, decodes and validates an engine configuration file.
// A missing file returns the defaults.
func Load(path string) (Engine, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Engine{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Engine{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()
	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if fc.AutoPrune != nil {
		cfg.AutoPrune = *fc.AutoPrune
	}
	if fc.Target != "" {
		target, err := ParseTarget(fc.Target)
		if err != nil {
			return Engine{}, err
		}
		cfg.Target = target
		if preset, ok := PresetWeights(target); ok {
			cfg.Weights = preset
		}
	}
	if fc.Weights != (Weights{}) {
		cfg.Weights = fc.Weights
	}
	if fc.Pruning != (PruningPolicy{}) {
		cfg.Pruning = fc.Pruning
	}
	if fc.EvaluationInterval != "" {
		interval, err := time.ParseDuration(fc.EvaluationInterval)
		if err != nil {
			return Engine{}, fmt.Errorf("parse evaluation_interval: %w", err)
		}
		cfg.EvaluationInterval = interval
	}

	if err := Validate(cfg); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

// Save writes the configuration atomically (temp file + rename).
func Save(path string, cfg Engine) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	fc := fileConfig{
		Enabled:            &cfg.Enabled,
		Target:             string(cfg.Target),
		Weights:            cfg.Weights,
		Pruning:            cfg.Pruning,
		EvaluationInterval: cfg.EvaluationInterval.String(),
		AutoPrune:          &cfg.AutoPrune,
	}

	out, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := renameio.WriteFile(path, out, 0o640); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
