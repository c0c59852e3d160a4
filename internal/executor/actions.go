package executor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/protocol"
)

// fill types text one character at a time, firing input per character and
// a single change at the end.
func (e *Executor) fill(ctx context.Context, el dom.Element, sel *protocol.Selector, text string) error {
	if err := el.Clear(ctx); err != nil {
		return e.driverError(ctx, sel, "clear", err)
	}
	if err := el.Focus(ctx); err != nil {
		return e.driverError(ctx, sel, "focus", err)
	}

	for _, char := range text {
		if err := el.AppendText(ctx, string(char)); err != nil {
			return e.driverError(ctx, sel, "type", err)
		}
		if err := e.clock.Sleep(ctx, e.keystroke); err != nil {
			return err
		}
	}

	if err := el.FireChange(ctx); err != nil {
		return e.driverError(ctx, sel, "change", err)
	}
	if err := el.Blur(ctx); err != nil {
		return e.driverError(ctx, sel, "blur", err)
	}
	return nil
}

// selectOption matches by value first, then by trimmed label.
func (e *Executor) selectOption(ctx context.Context, el dom.Element, sel *protocol.Selector, value string) error {
	desc, err := el.Describe(ctx)
	if err != nil {
		return e.driverError(ctx, sel, "describe", err)
	}
	if desc.Tag != "select" {
		return protocol.NewError(protocol.OptionNotFound, "%s is a <%s>, not a select", sel, desc.Tag)
	}

	match, ok := matchOption(desc.Options, value)
	if !ok {
		return protocol.NewError(protocol.OptionNotFound, "no option %q in %s", value, sel)
	}
	if err := el.SelectValue(ctx, match.Value); err != nil {
		return e.driverError(ctx, sel, "select", err)
	}
	e.logger.Debug("selected option",
		zap.String("value", match.Value),
		zap.String("label", match.Label),
	)
	return nil
}

func matchOption(options []dom.Option, value string) (dom.Option, bool) {
	for _, opt := range options {
		if opt.Value == value {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.TrimSpace(opt.Label) == value {
			return opt, true
		}
	}
	return dom.Option{}, false
}

func (e *Executor) click(ctx context.Context, el dom.Element, sel *protocol.Selector) error {
	desc, err := el.Describe(ctx)
	if err != nil {
		return e.driverError(ctx, sel, "describe", err)
	}
	if desc.Disabled {
		return protocol.NewError(protocol.ElementDisabled, "%s is disabled", sel)
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		return e.driverError(ctx, sel, "scroll", err)
	}
	if err := e.clock.Sleep(ctx, e.settle); err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return e.driverError(ctx, sel, "click", err)
	}
	return nil
}

// check clicks only when the current state differs from the requested one.
func (e *Executor) check(ctx context.Context, el dom.Element, sel *protocol.Selector, checked bool) error {
	desc, err := el.Describe(ctx)
	if err != nil {
		return e.driverError(ctx, sel, "describe", err)
	}
	if desc.Tag != "input" || desc.InputType != "checkbox" {
		return protocol.NewError(protocol.NotACheckbox, "%s is not a checkbox", sel)
	}
	if desc.Checked == checked {
		return nil
	}
	if err := el.Click(ctx); err != nil {
		return e.driverError(ctx, sel, "click", err)
	}
	return nil
}

func (e *Executor) upload(ctx context.Context, el dom.Element, sel *protocol.Selector, paths []string) error {
	desc, err := el.Describe(ctx)
	if err != nil {
		return e.driverError(ctx, sel, "describe", err)
	}
	if desc.Tag != "input" || desc.InputType != "file" {
		return protocol.NewError(protocol.ElementNotFound, "%s is not a file input", sel)
	}
	if len(paths) == 0 {
		return protocol.NewError(protocol.ElementNotFound, "no file to attach to %s", sel)
	}
	if err := el.SetFiles(ctx, paths); err != nil {
		return e.driverError(ctx, sel, "upload", err)
	}
	return nil
}

// scroll brings the target into view, or scrolls the window when the
// instruction has no selector.
func (e *Executor) scroll(ctx context.Context, ins protocol.Instruction, a protocol.Scroll) error {
	if ins.Selector == nil {
		if err := e.page.ScrollBy(ctx, a.X, a.Y); err != nil {
			return e.driverError(ctx, nil, "scroll window", err)
		}
		return e.clock.Sleep(ctx, e.settle)
	}

	el, err := e.target(ctx, ins)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return e.driverError(ctx, ins.Selector, "scroll", err)
	}
	return e.clock.Sleep(ctx, e.settle)
}
