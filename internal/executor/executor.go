// Package executor performs the side effect of a single instruction
// against the live page.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/protocol"
	"github.com/v0xg/jobfill/internal/resolver"
)

// DefaultKeystrokeDelay is the pause between typed characters.
const DefaultKeystrokeDelay = 50 * time.Millisecond

// Options configures execution behavior
type Options struct {
	KeystrokeDelay time.Duration
	ScrollSettle   time.Duration // Pause after scrolling a target into view
	Clock          clock.Sleeper
	Logger         *zap.Logger
}

// Executor runs instructions one at a time on a single page.
type Executor struct {
	page      dom.Page
	resolver  *resolver.Resolver
	keystroke time.Duration
	settle    time.Duration
	clock     clock.Sleeper
	logger    *zap.Logger
}

// New creates an executor for page.
func New(page dom.Page, opts Options) *Executor {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.KeystrokeDelay == 0 {
		opts.KeystrokeDelay = DefaultKeystrokeDelay
	}
	if opts.ScrollSettle == 0 {
		opts.ScrollSettle = resolver.DefaultScrollSettle
	}
	return &Executor{
		page: page,
		resolver: resolver.New(page, resolver.Options{
			ScrollSettle: opts.ScrollSettle,
			Clock:        opts.Clock,
			Logger:       opts.Logger,
		}),
		keystroke: opts.KeystrokeDelay,
		settle:    opts.ScrollSettle,
		clock:     opts.Clock,
		logger:    opts.Logger.Named("executor"),
	}
}

// Execute performs ins. Failures are *protocol.Error values except for
// context cancellation, which is returned as is.
func (e *Executor) Execute(ctx context.Context, ins protocol.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.logger.Debug("execute",
		zap.String("kind", string(ins.Kind())),
		zap.String("field", ins.FieldDescription),
	)
	if err := ins.Check(); err != nil {
		return err
	}

	switch a := ins.Action.(type) {
	case protocol.FillField:
		el, err := e.target(ctx, ins)
		if err != nil {
			return err
		}
		return e.fill(ctx, el, ins.Selector, a.Text)

	case protocol.SelectOption:
		el, err := e.target(ctx, ins)
		if err != nil {
			return err
		}
		return e.selectOption(ctx, el, ins.Selector, a.Value)

	case protocol.ClickButton:
		el, err := e.target(ctx, ins)
		if err != nil {
			return err
		}
		return e.click(ctx, el, ins.Selector)

	case protocol.CheckCheckbox:
		el, err := e.target(ctx, ins)
		if err != nil {
			return err
		}
		return e.check(ctx, el, ins.Selector, a.Checked)

	case protocol.UploadFile:
		el, err := e.target(ctx, ins)
		if err != nil {
			return err
		}
		return e.upload(ctx, el, ins.Selector, a.Paths)

	case protocol.Scroll:
		return e.scroll(ctx, ins, a)

	case protocol.Wait:
		if ins.Selector != nil {
			if _, err := e.target(ctx, ins); err != nil {
				return err
			}
		}
		return e.clock.Sleep(ctx, a.Duration)

	case nil:
		return protocol.NewError(protocol.UnknownInstructionKind, "instruction has no type")
	}
	// validate_page belongs to the flow controller; Unknown carries an
	// unrecognised tag.
	return protocol.NewError(protocol.UnknownInstructionKind, "cannot execute %q", ins.Kind())
}

// target resolves the instruction's selector. A missing selector and an
// empty match are both ElementNotFound.
func (e *Executor) target(ctx context.Context, ins protocol.Instruction) (dom.Element, error) {
	if ins.Selector == nil {
		return nil, protocol.NewError(protocol.ElementNotFound, "%s has no selector", ins.Kind())
	}
	el, found, err := e.resolver.Resolve(ctx, *ins.Selector)
	if err != nil {
		return nil, e.driverError(ctx, ins.Selector, "resolve", err)
	}
	if !found {
		return nil, protocol.NewError(protocol.ElementNotFound, "no element matches %s", ins.Selector)
	}
	return el, nil
}

// driverError reports a failed page call. A handle that went stale between
// resolve and use is indistinguishable from a vanished element, so it is
// reported as ElementNotFound.
func (e *Executor) driverError(ctx context.Context, sel *protocol.Selector, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return protocol.WrapError(protocol.ElementNotFound, err, "%s %s: %v", op, sel, err)
}
