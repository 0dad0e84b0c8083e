// Package config provides environment parsing and fatal-exit helpers for
// the score tracker's command entrypoints.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads DEMONO_* environment variables into the tagged target
// struct. Commands layer flag overrides on top of the parsed values.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
