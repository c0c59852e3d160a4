package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
)

// Render waits applied after the load event.
const (
	idleTimeout     = 5 * time.Second
	idleWindow      = 500 * time.Millisecond
	interactiveWait = 5 * time.Second
	pollInterval    = 200 * time.Millisecond
)

// Page is one tab. It implements dom.Page.
type Page struct {
	page   *rod.Page
	logger *zap.Logger
}

func newPage(p *rod.Page, logger *zap.Logger) *Page {
	return &Page{page: p, logger: logger}
}

// Rod returns the underlying Rod page
func (p *Page) Rod() *rod.Page {
	return p.page
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

// Navigate loads url in this tab. A page that never settles is still
// usable, so wait failures are only logged.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	p.logger.Debug("navigated", zap.String("url", url))
	if err := p.WaitLoad(ctx); err != nil {
		p.logger.Warn("wait load", zap.String("url", url), zap.Error(err))
	}
	return nil
}

// ExpectNavigation watches for the load event of the next document. The
// grace deadline covers pages whose next button rerenders in place.
func (p *Page) ExpectNavigation(ctx context.Context, grace time.Duration) (wait func(), stop func()) {
	watchCtx, cancel := context.WithTimeout(ctx, grace)
	return p.page.Context(watchCtx).WaitNavigation(proto.PageLifecycleEventNameLoad), cancel
}

func (p *Page) QueryCSS(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &Element{el: el}, nil
}

func (p *Page) QueryXPath(ctx context.Context, expr string) (dom.Element, error) {
	has, el, err := p.page.Context(ctx).HasX(expr)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &Element{el: el}, nil
}

func (p *Page) VisibleText(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return res.Value.Str(), nil
}

// WaitLoad waits for the load event, then for the network to go quiet and
// for interactive elements to render. Only the load event is mandatory; the
// other two are bounded best-effort waits for SPAs.
func (p *Page) WaitLoad(ctx context.Context) error {
	page := p.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return err
	}

	// Wait for network idle with timeout (don't hang on persistent connections)
	page.Timeout(idleTimeout).WaitRequestIdle(idleWindow, nil, nil, nil)()

	waitForInteractiveElements(ctx, page, interactiveWait)
	return ctx.Err()
}

func (p *Page) ScrollBy(ctx context.Context, x, y int) error {
	_, err := p.page.Context(ctx).Eval(`(x, y) => window.scrollBy(x, y)`, x, y)
	return err
}

func (p *Page) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	page := p.page.Context(ctx)

	info, err := page.Info()
	if err != nil {
		return dom.Snapshot{}, fmt.Errorf("failed to read page info: %w", err)
	}
	res, err := page.Eval(snapshotJS, dom.FileNameAttr)
	if err != nil {
		return dom.Snapshot{}, fmt.Errorf("failed to read page html: %w", err)
	}
	html := res.Value.Str()
	text, err := p.VisibleText(ctx)
	if err != nil {
		return dom.Snapshot{}, err
	}
	return dom.Snapshot{URL: info.URL, Title: info.Title, HTML: html, Text: text}, nil
}

// snapshotJS serialises a clone of the document with the live control state
// copied into attributes, leaving the page itself untouched.
const snapshotJS = `(fileAttr) => {
	const clone = document.documentElement.cloneNode(true);
	const live = document.querySelectorAll('input, textarea, select');
	const copies = clone.querySelectorAll('input, textarea, select');
	live.forEach((el, i) => {
		const c = copies[i];
		if (!c) return;
		if (el.tagName === 'SELECT') {
			Array.from(c.options).forEach((o, j) => {
				if (el.options[j] && el.options[j].selected) o.setAttribute('selected', '');
				else o.removeAttribute('selected');
			});
		} else if (el.tagName === 'TEXTAREA') {
			c.textContent = el.value;
		} else if (el.type === 'checkbox' || el.type === 'radio') {
			if (el.checked) c.setAttribute('checked', '');
			else c.removeAttribute('checked');
		} else if (el.type === 'file') {
			if (el.files && el.files[0]) c.setAttribute(fileAttr, el.files[0].name);
		} else {
			c.setAttribute('value', el.value);
		}
	});
	return clone.outerHTML;
}`

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

// IsSPA reports whether the page was rendered by a client-side framework.
func (p *Page) IsSPA(ctx context.Context) bool {
	res, err := p.page.Context(ctx).Eval(`() => {
		// React
		if (window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot]') || document.querySelector('#__next')) return true;
		// Vue
		if (window.__VUE__ || document.querySelector('[data-v-]')) return true;
		// Angular
		if (window.ng || document.querySelector('[ng-version]') || document.querySelector('app-root')) return true;
		// Svelte
		if (document.querySelector('[class*="svelte-"]')) return true;
		return false;
	}`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// waitForInteractiveElements polls until form controls appear or timeout
func waitForInteractiveElements(ctx context.Context, page *rod.Page, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		res, err := page.Eval(`() => {
			const controls = document.querySelectorAll('button, [role="button"], input:not([type="hidden"]), textarea, select');
			let visible = 0;
			controls.forEach(el => { if (el.offsetParent) visible++; });
			return visible;
		}`)
		if err != nil || res.Value.Int() > 0 {
			return
		}

		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Element is a handle to one node of a tab. It implements dom.Element.
type Element struct {
	el *rod.Element
}

func (e *Element) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return e.el.Context(ctx).Eval(js, args...)
}

func (e *Element) Describe(ctx context.Context) (dom.Description, error) {
	res, err := e.eval(ctx, `() => {
		const r = this.getBoundingClientRect();
		const tag = this.tagName.toLowerCase();
		return {
			tag: tag,
			type: tag === 'input' ? (this.getAttribute('type') || 'text').toLowerCase() : '',
			disabled: !!this.disabled,
			checked: !!this.checked,
			inViewport: r.top >= 0 && r.left >= 0 && r.bottom <= window.innerHeight && r.right <= window.innerWidth,
			options: tag === 'select' ? Array.from(this.options).map(o => ({value: o.value, label: o.textContent})) : [],
		};
	}`)
	if err != nil {
		return dom.Description{}, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return dom.Description{}, err
	}
	var d dom.Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return dom.Description{}, fmt.Errorf("failed to decode element description: %w", err)
	}
	return d, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	_, err := e.eval(ctx, `() => this.scrollIntoView({block: 'center'})`)
	return err
}

func (e *Element) Focus(ctx context.Context) error {
	_, err := e.eval(ctx, `() => this.focus()`)
	return err
}

func (e *Element) Blur(ctx context.Context) error {
	_, err := e.eval(ctx, `() => this.blur()`)
	return err
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.eval(ctx, `() => { this.value = '' }`)
	return err
}

func (e *Element) AppendText(ctx context.Context, s string) error {
	_, err := e.eval(ctx, `(s) => {
		this.value += s;
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`, s)
	return err
}

func (e *Element) FireChange(ctx context.Context) error {
	_, err := e.eval(ctx, `() => this.dispatchEvent(new Event('change', {bubbles: true}))`)
	return err
}

// Click dispatches a DOM click, which reaches the element even when an
// overlay would intercept a real mouse event.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.eval(ctx, `() => this.click()`)
	return err
}

func (e *Element) SelectValue(ctx context.Context, value string) error {
	res, err := e.eval(ctx, `(v) => {
		this.value = v;
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return this.value === v;
	}`, value)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return errors.New("select rejected value " + value)
	}
	return nil
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	return e.el.Context(ctx).SetFiles(paths)
}

var (
	_ dom.Page              = (*Page)(nil)
	_ dom.NavigationWatcher = (*Page)(nil)
	_ dom.Element           = (*Element)(nil)
)
