// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseString reads an environment variable with a fallback default.
func ParseString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// ParseBool reads a boolean environment variable with a fallback default.
func ParseBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return parsed
}

// ParseDuration reads a duration environment variable with a fallback default.
func ParseDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return parsed
}

// FromEnv applies ATRWAC_* environment overrides on top of cfg and validates
// the result. Unknown target strings are rejected rather than ignored.
func FromEnv(cfg Engine) (Engine, error) {
	cfg.Enabled = ParseBool("ATRWAC_ENABLED", cfg.Enabled)
	cfg.AutoPrune = ParseBool("ATRWAC_AUTO_PRUNE", cfg.AutoPrune)
	cfg.EvaluationInterval = ParseDuration("ATRWAC_EVAL_INTERVAL", cfg.EvaluationInterval)

	if raw := ParseString("ATRWAC_TARGET", ""); raw != "" {
		target, err := ParseTarget(raw)
		if err != nil {
			return Engine{}, fmt.Errorf("ATRWAC_TARGET: %w", err)
		}
		cfg.Target = target
		if preset, ok := PresetWeights(target); ok {
			cfg.Weights = preset
		}
	}

	if err := Validate(cfg); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}
