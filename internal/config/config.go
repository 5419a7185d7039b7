package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const defaultAPIBaseURL = "http://localhost:3001"

// Config holds everything the client needs at startup.
type Config struct {
	APIBaseURL string
	StateDir   string
	StorePath  string
	LogPath    string
	StaleAfter time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	stateDir := filepath.Join(userConfigDir(), "authdeck")
	return Config{
		APIBaseURL: defaultAPIBaseURL,
		StateDir:   stateDir,
		StorePath:  filepath.Join(stateDir, "session.db"),
		LogPath:    filepath.Join(stateDir, "debug.log"),
		StaleAfter: 5 * time.Minute,
	}
}

// Load applies .env and environment overrides on top of the defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("AUTHDECK_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("AUTHDECK_STATE_DIR"); v != "" {
		cfg.StateDir = v
		cfg.StorePath = filepath.Join(v, "session.db")
		cfg.LogPath = filepath.Join(v, "debug.log")
	}
	if v := os.Getenv("AUTHDECK_STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StaleAfter = d
		}
	}
	return cfg
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
