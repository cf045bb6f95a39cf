// Package config loads server configuration from environment
// variables, with an optional .env file for development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config is the whole configuration surface; there is no CLI beyond
// these variables.
type Config struct {
	BindAddr    string `env:"BIND_ADDR" envDefault:"127.0.0.1:8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:agarust_db.sqlite"`

	LogDirectory      string `env:"LOG_DIRECTORY" envDefault:"./"`
	LogFileNamePrefix string `env:"LOG_FILE_NAME_PREFIX" envDefault:"agarust_server.log"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

// Load reads the optional .env file, then the environment. Environment
// variables win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return cfg, fmt.Errorf("BCRYPT_COST %d outside [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cfg, nil
}
