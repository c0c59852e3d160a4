package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/jobfill/internal/ai"
	"github.com/v0xg/jobfill/internal/browser"
	"github.com/v0xg/jobfill/internal/classifier"
	"github.com/v0xg/jobfill/internal/config"
	"github.com/v0xg/jobfill/internal/flow"
	"github.com/v0xg/jobfill/internal/profile"
)

var (
	configPath  string
	provider    string
	model       string
	profilePath string
	weightsPath string
	browserDir  string
	headful     bool
	verbose     bool

	cfg    config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jobfill",
		Short: "Detect job application pages and fill them from your profile",
		Long: `jobfill opens a job application page in Chromium, checks that it really is
an application form, generates fill instructions from your profile (with an
AI model or a built-in field matcher) and executes them.

Example:
  jobfill run "https://boards.greenhouse.io/acme/jobs/42" --profile me.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}

			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "jobfill.yaml", "Config file")
	pf.StringVar(&provider, "provider", "", "Instruction generator: gemini, claude, openai, fallback (default: from config)")
	pf.StringVar(&model, "model", "", "Specific model override")
	pf.StringVarP(&profilePath, "profile", "p", "", "User profile file (YAML or JSON)")
	pf.StringVar(&weightsPath, "weights", "", "Classifier weight table (default: built-in)")
	pf.StringVar(&browserDir, "browser-profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	pf.BoolVar(&headful, "show", false, "Show the browser window")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.AddCommand(classifyCmd(), generateCmd(), runCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags win over the config file and env.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.AI.Provider = provider
	}
	if flags.Changed("model") {
		cfg.AI.Model = model
	}
	if flags.Changed("profile") {
		cfg.ProfilePath = profilePath
	}
	if flags.Changed("weights") {
		cfg.WeightsPath = weightsPath
	}
	if flags.Changed("browser-profile") {
		cfg.Browser.ProfileDir = browserDir
	}
	if flags.Changed("show") {
		cfg.Browser.Headless = !headful
	}
}

func launchBrowser() (*browser.Browser, error) {
	return browser.Launch(browser.Options{
		Bin:        cfg.Browser.Bin,
		Headless:   cfg.Browser.Headless,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Stealth:    cfg.Browser.Stealth,
		ProfileDir: cfg.Browser.ProfileDir,
		Timeout:    cfg.Timing.NavigationTimeout.Std(),
		Logger:     logger,
	})
}

func newClassifier() (*classifier.Classifier, error) {
	w, err := classifier.LoadWeights(cfg.WeightsPath)
	if err != nil {
		return nil, err
	}
	return classifier.New(w, logger), nil
}

func detectorOptions() classifier.DetectorOptions {
	return classifier.DetectorOptions{
		Delays: cfg.Timing.RetryDelays(),
		Logger: logger,
	}
}

func newProvider() (ai.Provider, error) {
	return ai.NewProviderOrFallback(cfg.AI.Provider, ai.Options{
		Model:  cfg.AI.Model,
		Logger: logger,
	})
}

func loadProfile() (*profile.Profile, error) {
	p, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func flowOptions() flow.Options {
	return flow.Options{
		Settle:            cfg.Timing.Settle.Std(),
		NavigationSettle:  cfg.Timing.NavigationSettle.Std(),
		NavigationTimeout: cfg.Timing.NavigationTimeout.Std(),
		KeystrokeDelay:    cfg.Timing.Keystroke.Std(),
		ScrollSettle:      cfg.Timing.ScrollSettle.Std(),
		Logger:            logger,
	}
}
