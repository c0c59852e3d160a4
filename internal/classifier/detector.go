package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
)

// DefaultRetryDelays are the pauses between detection attempts while a
// page finishes rendering.
var DefaultRetryDelays = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 3000 * time.Millisecond}

// DefaultMaxAttempts bounds detection attempts per page load.
const DefaultMaxAttempts = 3

// Source produces page snapshots. dom.Page satisfies it.
type Source interface {
	Snapshot(ctx context.Context) (dom.Snapshot, error)
}

// DetectorOptions configures retries.
type DetectorOptions struct {
	MaxAttempts int
	Delays      []time.Duration
	Clock       clock.Sleeper
	Logger      *zap.Logger
}

// Detector classifies a page that may still be rendering, retrying with
// progressive delays until it matches or runs out of attempts.
type Detector struct {
	classifier  *Classifier
	maxAttempts int
	delays      []time.Duration
	clock       clock.Sleeper
	logger      *zap.Logger
}

// NewDetector wraps c.
func NewDetector(c *Classifier, opts DetectorOptions) *Detector {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if len(opts.Delays) == 0 {
		opts.Delays = DefaultRetryDelays
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Detector{
		classifier:  c,
		maxAttempts: opts.MaxAttempts,
		delays:      opts.Delays,
		clock:       opts.Clock,
		logger:      opts.Logger.Named("detector"),
	}
}

// Detect returns the first matching result, or the last one once attempts
// run out. It fails only when every snapshot failed or ctx ended.
func (d *Detector) Detect(ctx context.Context, src Source) (Result, error) {
	var (
		last    Result
		have    bool
		lastErr error
	)
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		snap, err := src.Snapshot(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			lastErr = err
			d.logger.Debug("snapshot failed", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			last, have = d.classifier.Classify(snap), true
			d.logger.Debug("detection attempt",
				zap.Int("attempt", attempt),
				zap.String("method", last.Method),
				zap.Bool("match", last.IsMatch),
			)
			if last.IsMatch {
				return last, nil
			}
		}

		if attempt < d.maxAttempts {
			if err := d.clock.Sleep(ctx, d.delay(attempt)); err != nil {
				return last, err
			}
		}
	}

	if !have {
		if lastErr == nil {
			lastErr = errors.New("no snapshot taken")
		}
		return Result{}, fmt.Errorf("detect: %w", lastErr)
	}
	return last, nil
}

func (d *Detector) delay(attempt int) time.Duration {
	i := attempt - 1
	if i >= len(d.delays) {
		i = len(d.delays) - 1
	}
	return d.delays[i]
}
