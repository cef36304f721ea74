package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

const envPrefix = "GIFTVAULT_"

// parseEnv overlays cfg with GIFTVAULT_* variables. Unset variables keep the
// current value.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}
