package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, env := range []string{EnvProvider, EnvModel, EnvProfile, EnvWeights, EnvListen} {
		t.Setenv(env, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.Keystroke.Std())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second}, cfg.Timing.RetryDelays())

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "jobfill.yaml", `
browser:
  headless: false
  width: 1440
  height: 900
timing:
  keystroke: 10ms
  settle: 150
  classify_retries: [100ms]
ai:
  provider: claude
profile_path: /home/ada/profile.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1440, cfg.Browser.Width)
	assert.True(t, cfg.Browser.Stealth, "unset keys keep defaults")
	assert.Equal(t, 10*time.Millisecond, cfg.Timing.Keystroke.Std())
	assert.Equal(t, 150*time.Millisecond, cfg.Timing.Settle.Std())
	assert.Equal(t, 30*time.Second, cfg.Timing.NavigationTimeout.Std())
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, cfg.Timing.RetryDelays())
	assert.Equal(t, "claude", cfg.AI.Provider)
	assert.Equal(t, "/home/ada/profile.yaml", cfg.ProfilePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "openai")
	t.Setenv(EnvModel, "gpt-4o-mini")
	t.Setenv(EnvProfile, "/tmp/p.json")

	cfg, err := Load(writeFile(t, "c.yaml", "ai:\n  provider: claude\n"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, "/tmp/p.json", cfg.ProfilePath)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"bad yaml", "browser: [", "parse config"},
		{"bad duration", "timing:\n  settle: soon\n", "invalid duration"},
		{"negative", "timing:\n  settle: -5ms\n", "timing.settle"},
		{"viewport", "browser:\n  width: 0\n", "viewport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}
