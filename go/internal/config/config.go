package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/engine"
	"github.com/mcdev12/carauction/go/internal/notify"
	"github.com/mcdev12/carauction/go/internal/relay"
)

type Config struct {
	TickIntervalSeconds    int `env:"TICK_INTERVAL_SECONDS"    envDefault:"1"    validate:"min=1"`
	EndingThresholdSeconds int `env:"ENDING_THRESHOLD_SECONDS" envDefault:"3600" validate:"min=0"`

	SamplerEnabled         bool    `env:"SAMPLER_ENABLED"          envDefault:"true"`
	SamplerIntervalSeconds int     `env:"SAMPLER_INTERVAL_SECONDS" envDefault:"30"  validate:"min=1"`
	SamplerProbability     float64 `env:"SAMPLER_PROBABILITY"      envDefault:"0.2" validate:"min=0,max=1"`

	HTTPPort uint16 `env:"HTTP_PORT" envDefault:"8080" validate:"min=1"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"auction.events" validate:"required"`

	SeedFile string `env:"SEED_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Err(err).Msg(".env file not found")
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Engine projects the settings the auction core understands.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		TickInterval:    time.Duration(c.TickIntervalSeconds) * time.Second,
		EndingThreshold: time.Duration(c.EndingThresholdSeconds) * time.Second,
		Sampler: notify.SamplerConfig{
			Enabled:     c.SamplerEnabled,
			Interval:    time.Duration(c.SamplerIntervalSeconds) * time.Second,
			Probability: c.SamplerProbability,
		},
	}
}

// RelayEnabled reports whether events should be forwarded to NATS.
func (c *Config) RelayEnabled() bool {
	return c.NATSURL != ""
}

// Relay returns the NATS relay settings.
func (c *Config) Relay() relay.Config {
	rc := relay.DefaultConfig()
	rc.URL = c.NATSURL
	rc.SubjectPrefix = c.NATSSubjectPrefix
	return rc
}

// Level parses LogLevel. Validation guarantees it is known.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
