// Package domtest provides an in-memory dom.Page for engine tests.
package domtest

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/v0xg/jobfill/internal/dom"
)

// ErrDetached is returned by elements removed from their page.
var ErrDetached = errors.New("domtest: element is detached")

// Element is a scripted element. Exported fields describe its initial
// state; Events records every interaction in order.
type Element struct {
	Tag       string
	Type      string
	Attrs     map[string]string
	Text      string
	Value     string
	Checked   bool
	Disabled  bool
	Offscreen bool
	Options   []dom.Option
	Files     []string

	// Aliases lists extra CSS or XPath expressions this element answers to.
	Aliases []string

	// OnClick runs after a click is recorded.
	OnClick func()

	mu       sync.Mutex
	events   []string
	detached bool
}

// Events returns a copy of the recorded interaction log.
func (e *Element) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

// Count returns how many times event was recorded.
func (e *Element) Count(event string) int {
	n := 0
	for _, ev := range e.Events() {
		if ev == event {
			n++
		}
	}
	return n
}

func (e *Element) record(ev string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return ErrDetached
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *Element) Describe(ctx context.Context) (dom.Description, error) {
	if err := ctx.Err(); err != nil {
		return dom.Description{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return dom.Description{}, ErrDetached
	}
	return dom.Description{
		Tag:        strings.ToLower(e.Tag),
		InputType:  strings.ToLower(e.Type),
		Disabled:   e.Disabled,
		Checked:    e.Checked,
		InViewport: !e.Offscreen,
		Options:    append([]dom.Option(nil), e.Options...),
	}, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := e.record("scroll"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Offscreen = false
	e.mu.Unlock()
	return nil
}

func (e *Element) Focus(ctx context.Context) error { return e.record("focus") }
func (e *Element) Blur(ctx context.Context) error  { return e.record("blur") }

func (e *Element) Clear(ctx context.Context) error {
	if err := e.record("clear"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Value = ""
	e.mu.Unlock()
	return nil
}

func (e *Element) AppendText(ctx context.Context, s string) error {
	if err := e.record("input"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Value += s
	e.mu.Unlock()
	return nil
}

func (e *Element) FireChange(ctx context.Context) error { return e.record("change") }

func (e *Element) Click(ctx context.Context) error {
	if err := e.record("click"); err != nil {
		return err
	}
	e.mu.Lock()
	if strings.EqualFold(e.Type, "checkbox") || strings.EqualFold(e.Type, "radio") {
		e.Checked = !e.Checked
	}
	onClick := e.OnClick
	e.mu.Unlock()
	if onClick != nil {
		onClick()
	}
	return nil
}

func (e *Element) SelectValue(ctx context.Context, value string) error {
	if err := e.record("select"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Value = value
	e.mu.Unlock()
	return e.record("change")
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	if err := e.record("files"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Files = append([]string(nil), paths...)
	e.mu.Unlock()
	return nil
}

// Page is a scripted dom.Page.
type Page struct {
	URL   string
	Title string
	HTML  string

	mu       sync.Mutex
	elements []*Element
	text     string
	loadErr  error
	loadWait chan struct{}
	scrolled [][2]int
	queries  []string
	armed    int
}

// NewPage returns a page holding elements in document order.
func NewPage(text string, elements ...*Element) *Page {
	p := &Page{text: text}
	p.Replace(text, elements...)
	return p
}

// Replace swaps the document content, detaching the previous elements.
// Tests use it from OnClick hooks to simulate navigation.
func (p *Page) Replace(text string, elements ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, old := range p.elements {
		old.mu.Lock()
		old.detached = true
		old.mu.Unlock()
	}
	p.elements = elements
	p.text = text
}

// BlockLoad makes WaitLoad block until the returned function is called.
func (p *Page) BlockLoad() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.loadWait = ch
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// FailLoad makes WaitLoad return err.
func (p *Page) FailLoad(err error) {
	p.mu.Lock()
	p.loadErr = err
	p.mu.Unlock()
}

// Queries returns every selector or expression the page was asked for.
func (p *Page) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

// ExpectNavigation counts the watches; wait returns at once.
func (p *Page) ExpectNavigation(ctx context.Context, grace time.Duration) (wait func(), stop func()) {
	p.mu.Lock()
	p.armed++
	p.mu.Unlock()
	return func() {}, func() {}
}

// Navigations returns how many navigation watches were armed.
func (p *Page) Navigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed
}

// Scrolls returns the recorded window scroll offsets.
func (p *Page) Scrolls() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int(nil), p.scrolled...)
}

var (
	attrCSS   = regexp.MustCompile(`^\[([a-zA-Z-]+)="((?:[^"\\]|\\.)*)"\]$`)
	textXPath = regexp.MustCompile(`^//body//\*\[text\(\)\[contains\(\., (".*"|'.*')\)\]\]$`)
)

func (p *Page) QueryCSS(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, selector)

	if m := attrCSS.FindStringSubmatch(selector); m != nil {
		name, value := m[1], unescapeCSS(m[2])
		for _, el := range p.elements {
			if el.Attrs[name] == value {
				return el, nil
			}
		}
	}
	return p.byAlias(selector), nil
}

func (p *Page) QueryXPath(ctx context.Context, expr string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, expr)

	if m := textXPath.FindStringSubmatch(expr); m != nil {
		needle := m[1][1 : len(m[1])-1]
		for _, el := range p.elements {
			if el.Text != "" && strings.Contains(el.Text, needle) {
				return el, nil
			}
		}
		return nil, nil
	}
	return p.byAlias(expr), nil
}

func (p *Page) byAlias(q string) dom.Element {
	for _, el := range p.elements {
		for _, a := range el.Aliases {
			if a == q {
				return el
			}
		}
	}
	return nil
}

func (p *Page) VisibleText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text, nil
}

func (p *Page) WaitLoad(ctx context.Context) error {
	p.mu.Lock()
	wait, err := p.loadWait, p.loadErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if wait == nil {
		return ctx.Err()
	}
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) ScrollBy(ctx context.Context, x, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolled = append(p.scrolled, [2]int{x, y})
	return nil
}

func (p *Page) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Snapshot{URL: p.URL, Title: p.Title, HTML: p.HTML, Text: p.text}, nil
}

func unescapeCSS(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ dom.Page              = (*Page)(nil)
	_ dom.NavigationWatcher = (*Page)(nil)
	_ dom.Element           = (*Element)(nil)
)
