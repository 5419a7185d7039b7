package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBaseURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:3001", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.NotEmpty(t, cfg.StorePath)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("AUTHDECK_API_URL", "https://accounts.example.com")
	t.Setenv("AUTHDECK_STATE_DIR", t.TempDir())
	t.Setenv("AUTHDECK_STALE_AFTER", "90s")

	cfg := Load()
	assert.Equal(t, "https://accounts.example.com", cfg.APIBaseURL)
	assert.Equal(t, 90*time.Second, cfg.StaleAfter)
	assert.Contains(t, cfg.StorePath, cfg.StateDir)
}

func TestLoadIgnoresBadStaleAfter(t *testing.T) {
	t.Setenv("AUTHDECK_STALE_AFTER", "soon")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
}
