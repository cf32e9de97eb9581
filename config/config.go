// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required bot credentials, use ValidateBotReady.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Discord
	BotToken  string
	AppID     string
	PublicKey string
	APIBase   string

	// Snapshot
	SnapshotPath string

	// Intervals
	SweepInterval   time.Duration
	PersistInterval time.Duration
	DebounceDelay   time.Duration

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Discord creds are missing; use ValidateBotReady() when you require the
// gateway and REST surface. Interval values fall back to defaults on parse
// errors rather than failing.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.AppID = os.Getenv("DISCORD_APP_ID")
	cfg.PublicKey = os.Getenv("DISCORD_PUBLIC_KEY")
	cfg.APIBase = os.Getenv("DISCORD_API_BASE")
	if cfg.APIBase == "" {
		cfg.APIBase = "https://discord.com/api/v10"
	}

	cfg.SnapshotPath = os.Getenv("SNAPSHOT_PATH")
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "data/counters.json"
	}

	cfg.SweepInterval = durationEnv("SWEEP_INTERVAL", 5*time.Minute)
	cfg.PersistInterval = durationEnv("PERSIST_INTERVAL", 10*time.Minute)
	cfg.DebounceDelay = durationEnv("DEBOUNCE_DELAY", time.Second)

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateBotReady checks required fields for talking to Discord.
func (c *Config) ValidateBotReady() error {
	if c.BotToken == "" || c.AppID == "" {
		return fmt.Errorf("missing discord env: require DISCORD_BOT_TOKEN, DISCORD_APP_ID")
	}
	return nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
