package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotenvFiles is a seam for tests.
var dotenvFiles = []string{".env"}

// parseEnv overlays environment variables named by the `env` struct tags.
// A missing .env file is not an error; variables already present in the
// process environment win over the file.
func parseEnv(cfg *Config) error {
	_ = godotenv.Load(dotenvFiles...)

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
