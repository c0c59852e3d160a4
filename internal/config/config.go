// Package config loads jobfill settings from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvProvider = "JOBFILL_PROVIDER"
	EnvModel    = "JOBFILL_MODEL"
	EnvProfile  = "JOBFILL_PROFILE"
	EnvWeights  = "JOBFILL_WEIGHTS"
	EnvListen   = "JOBFILL_LISTEN"
)

// Duration is a time.Duration that reads "250ms" style strings or plain
// milliseconds from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// BrowserConfig configures Chromium.
type BrowserConfig struct {
	Bin        string `yaml:"bin"`
	Headless   bool   `yaml:"headless"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Stealth    bool   `yaml:"stealth"`
	ProfileDir string `yaml:"profile_dir"`
}

// TimingConfig holds every pause the engine takes.
type TimingConfig struct {
	Keystroke         Duration   `yaml:"keystroke"`
	Settle            Duration   `yaml:"settle"`
	ScrollSettle      Duration   `yaml:"scroll_settle"`
	NavigationSettle  Duration   `yaml:"navigation_settle"`
	NavigationTimeout Duration   `yaml:"navigation_timeout"`
	ClassifyRetries   []Duration `yaml:"classify_retries"`
}

// RetryDelays converts ClassifyRetries.
func (t TimingConfig) RetryDelays() []time.Duration {
	out := make([]time.Duration, len(t.ClassifyRetries))
	for i, d := range t.ClassifyRetries {
		out[i] = d.Std()
	}
	return out
}

// AIConfig selects the instruction generator.
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Config holds all jobfill settings.
type Config struct {
	Browser     BrowserConfig `yaml:"browser"`
	Timing      TimingConfig  `yaml:"timing"`
	AI          AIConfig      `yaml:"ai"`
	ProfilePath string        `yaml:"profile_path"`
	WeightsPath string        `yaml:"weights_path"` // embedded table when empty
	Listen      string        `yaml:"listen"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   900,
			Stealth:  true,
		},
		Timing: TimingConfig{
			Keystroke:         Duration(50 * time.Millisecond),
			Settle:            Duration(200 * time.Millisecond),
			ScrollSettle:      Duration(500 * time.Millisecond),
			NavigationSettle:  Duration(1000 * time.Millisecond),
			NavigationTimeout: Duration(30 * time.Second),
			ClassifyRetries: []Duration{
				Duration(500 * time.Millisecond),
				Duration(1500 * time.Millisecond),
				Duration(3000 * time.Millisecond),
			},
		},
		AI: AIConfig{
			Provider: "gemini",
		},
		ProfilePath: "profile.yaml",
		Listen:      "127.0.0.1:8765",
	}
}

// Load reads the .env file (if present), then the YAML config at path on
// top of the defaults, then applies environment overrides. An empty path
// or a missing file yields the defaults.
func Load(path string) (Config, error) {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		EnvProvider: &c.AI.Provider,
		EnvModel:    &c.AI.Model,
		EnvProfile:  &c.ProfilePath,
		EnvWeights:  &c.WeightsPath,
		EnvListen:   &c.Listen,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}
	for name, d := range map[string]Duration{
		"keystroke":          c.Timing.Keystroke,
		"settle":             c.Timing.Settle,
		"scroll_settle":      c.Timing.ScrollSettle,
		"navigation_settle":  c.Timing.NavigationSettle,
		"navigation_timeout": c.Timing.NavigationTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("timing.%s must not be negative", name)
		}
	}
	if c.Timing.NavigationTimeout == 0 {
		return errors.New("timing.navigation_timeout must be set")
	}
	return nil
}
