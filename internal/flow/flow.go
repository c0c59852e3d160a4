// Package flow drives an instruction document across the pages of a
// multi-page form.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/execlog"
	"github.com/v0xg/jobfill/internal/executor"
	"github.com/v0xg/jobfill/internal/protocol"
)

// Default pauses of a run.
const (
	DefaultSettle            = 200 * time.Millisecond
	DefaultNavigationSettle  = 1000 * time.Millisecond
	DefaultNavigationTimeout = 30 * time.Second
)

// navigationGrace bounds the wait for a new document after the next button
// was clicked. Forms that swap steps without loading a document fall
// through to WaitLoad once it passes.
const navigationGrace = 3 * time.Second

// State is the controller's position in a run.
type State string

const (
	AwaitingPage State = "awaiting_page"
	Validating   State = "validating"
	Executing    State = "executing"
	Navigating   State = "navigating"
	Completed    State = "completed"
	Aborted      State = "aborted"
)

// Step reports one attempted instruction.
type Step struct {
	Page        int // 1-based page position in the document
	Index       int // 1-based instruction position on the page
	Total       int // instructions on the page
	Instruction protocol.Instruction
	Err         error
}

// Options configures a controller.
type Options struct {
	Settle            time.Duration // Pause after each attempted instruction
	NavigationSettle  time.Duration // Pause after the next page loaded
	NavigationTimeout time.Duration
	KeystrokeDelay    time.Duration
	ScrollSettle      time.Duration
	Clock             clock.Sleeper
	Logger            *zap.Logger

	// OnStep, when set, is called after every attempted instruction.
	OnStep func(Step)
}

// Controller runs documents against one page.
type Controller struct {
	page       dom.Page
	exec       *executor.Executor
	settle     time.Duration
	navSettle  time.Duration
	navTimeout time.Duration
	clock      clock.Sleeper
	logger     *zap.Logger
	onStep     func(Step)

	mu    sync.RWMutex
	state State
}

// New creates a controller for page.
func New(page dom.Page, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Settle == 0 {
		opts.Settle = DefaultSettle
	}
	if opts.NavigationSettle == 0 {
		opts.NavigationSettle = DefaultNavigationSettle
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Controller{
		page: page,
		exec: executor.New(page, executor.Options{
			KeystrokeDelay: opts.KeystrokeDelay,
			ScrollSettle:   opts.ScrollSettle,
			Clock:          opts.Clock,
			Logger:         opts.Logger,
		}),
		settle:     opts.Settle,
		navSettle:  opts.NavigationSettle,
		navTimeout: opts.NavigationTimeout,
		clock:      opts.Clock,
		logger:     opts.Logger.Named("flow"),
		onStep:     opts.OnStep,
		state:      AwaitingPage,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes doc page by page and returns the outcome with the log of
// every attempted instruction. A fresh log is created for every run.
func (c *Controller) Run(ctx context.Context, doc *protocol.Document) *Result {
	log := execlog.New()
	c.setState(AwaitingPage)

	if err := doc.Validate(); err != nil {
		return c.abort(err, log)
	}

	for i := range doc.Pages {
		page := &doc.Pages[i]
		c.logger.Info("page",
			zap.Int("number", page.PageNumber),
			zap.Int("of", len(doc.Pages)),
			zap.String("title", page.PageTitle),
		)

		c.setState(Validating)
		if err := c.validate(ctx, page.Validation); err != nil {
			return c.abort(err, log)
		}

		c.setState(Executing)
		if err := c.executePage(ctx, i+1, page, log); err != nil {
			return c.abort(err, log)
		}

		last := i == len(doc.Pages)-1
		if !last && page.Navigation.HasNext {
			c.setState(Navigating)
			if err := c.navigate(ctx, *page.Navigation.NextButton); err != nil {
				return c.abort(err, log)
			}
			c.setState(AwaitingPage)
		}
	}

	c.setState(Completed)
	c.logger.Info("run completed", zap.Int("entries", log.Len()))
	return &Result{Success: true, Log: log.Entries()}
}

func (c *Controller) abort(err error, log *execlog.Log) *Result {
	c.setState(Aborted)
	res := newFailure(err, log.Entries())
	c.logger.Warn("run aborted",
		zap.String("error", res.Error),
		zap.String("detail", res.Detail),
		zap.Int("entries", len(res.Log)),
	)
	return res
}

// validate scans the visible text for error indicators. Success indicators
// are advisory only.
func (c *Controller) validate(ctx context.Context, v protocol.Validation) error {
	text, err := c.page.VisibleText(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return protocol.WrapError(protocol.PageValidationError, err, "read page text: %v", err)
	}

	for _, indicator := range v.ErrorIndicators {
		if indicator != "" && strings.Contains(text, indicator) {
			return protocol.NewError(protocol.PageValidationError, "error indicator found: %s", indicator)
		}
	}
	for _, indicator := range v.SuccessIndicators {
		if indicator != "" && strings.Contains(text, indicator) {
			c.logger.Debug("success indicator found", zap.String("indicator", indicator))
		}
	}
	return nil
}

func (c *Controller) executePage(ctx context.Context, pageNo int, page *protocol.PageInstructionSet, log *execlog.Log) error {
	total := len(page.Instructions)
	for j, ins := range page.Instructions {
		var err error
		if _, ok := ins.Action.(protocol.ValidatePage); ok {
			err = c.validate(ctx, page.Validation)
		} else {
			err = c.exec.Execute(ctx, ins)
		}

		// Cancellation is not an instruction outcome.
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			log.Failure(ins, err)
		} else {
			log.Success(ins)
		}
		if c.onStep != nil {
			c.onStep(Step{Page: pageNo, Index: j + 1, Total: total, Instruction: ins, Err: err})
		}

		if err != nil {
			c.logger.Warn("instruction failed",
				zap.String("kind", string(ins.Kind())),
				zap.String("field", ins.FieldDescription),
				zap.Bool("required", ins.Required),
				zap.Error(err),
			)
			if ins.Required {
				return err
			}
		}

		if err := c.clock.Sleep(ctx, c.settle); err != nil {
			return err
		}
	}
	return nil
}

// navigate clicks the next button and waits for the following page. The
// click is not an entry of the execution log.
func (c *Controller) navigate(ctx context.Context, next protocol.Instruction) error {
	// Armed before the click so WaitLoad does not see the outgoing document.
	waitNav := func() {}
	if w, ok := c.page.(dom.NavigationWatcher); ok {
		wait, stop := w.ExpectNavigation(ctx, navigationGrace)
		defer stop()
		waitNav = wait
	}

	if err := c.exec.Execute(ctx, next); err != nil {
		return err
	}
	waitNav()

	loadCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()
	if err := c.page.WaitLoad(loadCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return protocol.NewError(protocol.NavigationTimeout, "next page did not load within %s", c.navTimeout)
		}
		return protocol.WrapError(protocol.NavigationTimeout, err, "wait for next page: %v", err)
	}

	return c.clock.Sleep(ctx, c.navSettle)
}
