// Package dom is the narrow view of a live page that the automation engine
// acts on. The browser package implements it over a rod tab; tests use an
// in-memory fake.
package dom

import (
	"context"
	"time"
)

// Option is one entry of a <select>.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Description is a point-in-time read of an element's state.
type Description struct {
	Tag        string   `json:"tag"`  // lower-case tag name
	InputType  string   `json:"type"` // lower-case type attribute, inputs only
	Disabled   bool     `json:"disabled"`
	Checked    bool     `json:"checked"`
	InViewport bool     `json:"inViewport"`
	Options    []Option `json:"options,omitempty"`
}

// Element is a handle to one element of the live document. Handles can go
// stale when the page re-renders; every call reports that as an error.
type Element interface {
	Describe(ctx context.Context) (Description, error)
	ScrollIntoView(ctx context.Context) error
	Focus(ctx context.Context) error
	Blur(ctx context.Context) error
	// Clear empties the value without firing events.
	Clear(ctx context.Context) error
	// AppendText appends s to the value and fires one input event.
	AppendText(ctx context.Context, s string) error
	// FireChange dispatches a bubbling change event.
	FireChange(ctx context.Context) error
	Click(ctx context.Context) error
	// SelectValue sets a <select> to the option with the given value and
	// fires change.
	SelectValue(ctx context.Context, value string) error
	SetFiles(ctx context.Context, paths []string) error
}

// Page is the live document of one tab.
type Page interface {
	// QueryCSS returns the first match in document order, or nil when
	// nothing matches.
	QueryCSS(ctx context.Context, selector string) (Element, error)
	// QueryXPath returns the first ordered node matching expr, or nil.
	QueryXPath(ctx context.Context, expr string) (Element, error)
	// VisibleText returns the rendered text of the body.
	VisibleText(ctx context.Context) (string, error)
	// WaitLoad blocks until the document finished loading.
	WaitLoad(ctx context.Context) error
	// ScrollBy scrolls the window.
	ScrollBy(ctx context.Context, x, y int) error
	// Snapshot captures the page for offline analysis.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// NavigationWatcher is implemented by pages that can observe a document
// change. ExpectNavigation is armed before the action that may navigate;
// wait blocks until the next document fired load or grace elapsed, and
// stop releases the watch.
type NavigationWatcher interface {
	ExpectNavigation(ctx context.Context, grace time.Duration) (wait func(), stop func())
}

// FileNameAttr carries the first attached file name of a file input in
// snapshot HTML.
const FileNameAttr = "data-jobfill-file"

// Snapshot is a serialised copy of a page used by the classifier and the
// instruction generator. HTML reflects the live state of form controls:
// values, checked boxes and selected options are written back as
// attributes.
type Snapshot struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	// Text is the rendered body text when a browser produced the snapshot.
	// Consumers derive it from HTML when empty.
	Text string `json:"text,omitempty"`
}
