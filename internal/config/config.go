package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"./printdesk.db"`
	MigrationsDir   string        `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	FleetConfigPath string        `env:"FLEET_CONFIG" envDefault:"fleet.yaml"`
	FleetPoll       time.Duration `env:"FLEET_POLL_INTERVAL" envDefault:"15s"`
	APIToken        string        `env:"API_TOKEN"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Dev             bool          `env:"DEV" envDefault:"false"`
}

// Load reads environment variables and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment config: %w", err)
	}

	return cfg, nil
}

// IsDev reports whether the server runs in local development mode.
func (c Config) IsDev() bool {
	return c.Dev
}
