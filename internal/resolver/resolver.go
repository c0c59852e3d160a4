// Package resolver turns an abstract selector into a live page element.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/protocol"
)

// DefaultScrollSettle is the pause after scrolling an element into view.
const DefaultScrollSettle = 500 * time.Millisecond

// Options configures resolution.
type Options struct {
	ScrollSettle time.Duration
	Clock        clock.Sleeper
	Logger       *zap.Logger
}

// Resolver locates elements on one page.
type Resolver struct {
	page   dom.Page
	settle time.Duration
	clock  clock.Sleeper
	logger *zap.Logger
}

// New creates a resolver bound to page.
func New(page dom.Page, opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ScrollSettle == 0 {
		opts.ScrollSettle = DefaultScrollSettle
	}
	return &Resolver{
		page:   page,
		settle: opts.ScrollSettle,
		clock:  opts.Clock,
		logger: opts.Logger.Named("resolver"),
	}
}

// Query is the lookup a selector translates to.
type Query struct {
	Expr  string
	XPath bool
}

// Compile maps a selector onto exactly one lookup. There is no fallback
// between strategies.
func Compile(sel protocol.Selector) (Query, error) {
	if err := sel.Validate(); err != nil {
		return Query{}, err
	}
	switch sel.Kind {
	case protocol.SelectorID:
		return Query{Expr: attrEquals("id", sel.Value)}, nil
	case protocol.SelectorName:
		return Query{Expr: attrEquals("name", sel.Value)}, nil
	case protocol.SelectorPlaceholder:
		return Query{Expr: attrEquals("placeholder", sel.Value)}, nil
	case protocol.SelectorAriaLabel:
		return Query{Expr: attrEquals("aria-label", sel.Value)}, nil
	case protocol.SelectorCSS:
		return Query{Expr: sel.Value}, nil
	case protocol.SelectorXPath:
		return Query{Expr: sel.Value, XPath: true}, nil
	case protocol.SelectorText:
		// Direct text nodes only, so the first document-order hit is the
		// element that owns the text rather than <html>.
		return Query{Expr: fmt.Sprintf("//body//*[text()[contains(., %s)]]", XPathLiteral(sel.Value)), XPath: true}, nil
	}
	return Query{}, fmt.Errorf("unknown selector type %q", sel.Kind)
}

// Resolve returns the element sel designates. found is false when nothing
// matches; err is reserved for driver failures and invalid selectors.
// Off-screen elements are scrolled into view before being returned.
func (r *Resolver) Resolve(ctx context.Context, sel protocol.Selector) (el dom.Element, found bool, err error) {
	q, err := Compile(sel)
	if err != nil {
		return nil, false, err
	}

	if q.XPath {
		el, err = r.page.QueryXPath(ctx, q.Expr)
	} else {
		el, err = r.page.QueryCSS(ctx, q.Expr)
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", sel, err)
	}
	if el == nil {
		r.logger.Debug("no match", zap.Stringer("selector", sel))
		return nil, false, nil
	}

	desc, err := el.Describe(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("describe %s: %w", sel, err)
	}
	if !desc.InViewport {
		r.logger.Debug("scrolling into view", zap.Stringer("selector", sel))
		if err := el.ScrollIntoView(ctx); err != nil {
			return nil, false, fmt.Errorf("scroll %s into view: %w", sel, err)
		}
		if err := r.clock.Sleep(ctx, r.settle); err != nil {
			return nil, false, err
		}
	}
	return el, true, nil
}

// attrEquals builds an attribute-equality selector with the value quoted
// as a CSS string.
func attrEquals(attr, value string) string {
	return "[" + attr + "=" + CSSString(value) + "]"
}

// CSSString quotes s as a double-quoted CSS string.
func CSSString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// XPathLiteral quotes s for XPath 1.0, which has no escape sequences:
// strings holding both quote kinds are assembled with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
