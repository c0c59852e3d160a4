// Package browser drives Chromium through go-rod and exposes each tab as a
// dom.Page.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Options configures the browser.
type Options struct {
	Bin        string // Chromium binary; looked up when empty
	Headless   bool
	Width      int
	Height     int
	Stealth    bool          // Open tabs with the stealth evasions applied
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
	Timeout    time.Duration // Navigation timeout when opening a tab
	Logger     *zap.Logger
}

// Browser owns one Chromium process.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *zap.Logger
}

// Launch starts Chromium and connects to it.
func Launch(opts Options) (*Browser, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 900
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("browser")

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Bin(bin).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Debug("launched", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
	return &Browser{browser: b, launcher: l, opts: opts, logger: logger}, nil
}

// Open creates a tab, navigates it to url and waits until the document has
// loaded and rendered its interactive elements.
func (b *Browser) Open(ctx context.Context, url string) (*Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.opts.Stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	p := newPage(page, b.logger)
	if err := p.Navigate(navCtx, url); err != nil {
		_ = page.Close()
		return nil, err
	}
	return p, nil
}

// Close cleans up browser resources
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	// Cleanup removes the user data dir, which must survive for profiles.
	if b.launcher != nil && b.opts.ProfileDir == "" {
		b.launcher.Cleanup()
	}
	return err
}
