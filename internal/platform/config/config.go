// Package config layers service configuration: built-in defaults, then an
// optional YAML file, then environment overrides. Services run with no file
// at all; the file exists for deployments that prefer one.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/organizer-live/organizer/internal/platform/env"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "48h" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// APIAddr is the HTTP listen address of the API service.
	APIAddr string `yaml:"api_addr"`
	// StreamerAddr is the HTTP listen address of the live-feed service.
	StreamerAddr string `yaml:"streamer_addr"`

	DatabaseURL string `yaml:"database_url"`
	NATSURL     string `yaml:"nats_url"`

	// JWTSecret signs access tokens. The default is development-only.
	JWTSecret string `yaml:"jwt_secret"`

	// UIOrigin is the allowed CORS origin for browser clients.
	UIOrigin string `yaml:"ui_origin"`

	// PurgeSchedule is a cron-style schedule for the deleted-record purge.
	PurgeSchedule string `yaml:"purge_schedule"`
	// PurgeRetention is how long soft-deleted records stay recoverable.
	PurgeRetention Duration `yaml:"purge_retention"`

	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

func defaults() Config {
	return Config{
		APIAddr:         env.DefaultAPIAddr,
		StreamerAddr:    env.DefaultStreamerAddr,
		DatabaseURL:     env.DefaultDatabaseURL,
		NATSURL:         env.DefaultNATSURL,
		JWTSecret:       "dev-insecure-change-me",
		UIOrigin:        "http://localhost:8081",
		PurgeSchedule:   "@daily",
		PurgeRetention:  Duration(7 * 24 * time.Hour),
		ShutdownTimeout: Duration(10 * time.Second),
	}
}

// Load builds the effective configuration. path may be empty; a missing
// file is not an error, a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, err
			}
		case errors.Is(err, fs.ErrNotExist):
			// fall through to env overrides
		default:
			return Config{}, err
		}
	}

	cfg.APIAddr = env.String("API_ADDR", cfg.APIAddr)
	cfg.StreamerAddr = env.String("STREAMER_ADDR", cfg.StreamerAddr)
	cfg.DatabaseURL = env.String("DATABASE_URL", cfg.DatabaseURL)
	cfg.NATSURL = env.String("NATS_URL", cfg.NATSURL)
	cfg.JWTSecret = env.String("JWT_SECRET", cfg.JWTSecret)
	cfg.UIOrigin = env.String("UI_ORIGIN", cfg.UIOrigin)
	cfg.PurgeSchedule = env.String("PURGE_SCHEDULE", cfg.PurgeSchedule)
	cfg.PurgeRetention = Duration(env.Duration("PURGE_RETENTION", cfg.PurgeRetention.Std()))
	cfg.ShutdownTimeout = Duration(env.Duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout.Std()))

	return cfg, nil
}
