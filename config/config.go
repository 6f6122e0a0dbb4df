/*
Package config loads server configuration from the environment.

PURPOSE:
  One struct, parsed once at startup with caarlos0/env. Every knob has a
  default so a bare `./server` runs; cmd/server layers -port/-db flag
  overrides on top for local development.

ENVIRONMENT:
  SERVER_PORT              HTTP port                     (default 8080)
  SERVER_READ_TIMEOUT      seconds                       (default 15)
  SERVER_WRITE_TIMEOUT     seconds                       (default 15)
  SERVER_IDLE_TIMEOUT      seconds                       (default 60)
  SERVER_SHUTDOWN_TIMEOUT  seconds                       (default 30)
  DATABASE_PATH            SQLite path, ":memory:" ok    (default dispatch.db)
  CATALOG_DIR              YAML rule catalog directory   (default none)
  CORS_ORIGINS             comma-separated origins

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server struct {
		Port            string `env:"PORT" envDefault:"8080"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"15"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"30"`
	} `envPrefix:"SERVER_"`
	Database struct {
		Path string `env:"PATH" envDefault:"dispatch.db"`
	} `envPrefix:"DATABASE_"`
	Catalog struct {
		Dir string `env:"DIR"`
	} `envPrefix:"CATALOG_"`
	CORS struct {
		Origins []string `env:"ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
	} `envPrefix:"CORS_"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			// Surface only the first error to keep startup logs readable
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}
	return cfg, nil
}
