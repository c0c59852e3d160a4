package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom/domtest"
	"github.com/v0xg/jobfill/internal/protocol"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		sel   protocol.Selector
		expr  string
		xpath bool
	}{
		{protocol.Selector{Kind: protocol.SelectorID, Value: "first_name"}, `[id="first_name"]`, false},
		{protocol.Selector{Kind: protocol.SelectorName, Value: `say "hi"`}, `[name="say \"hi\""]`, false},
		{protocol.Selector{Kind: protocol.SelectorPlaceholder, Value: "Email"}, `[placeholder="Email"]`, false},
		{protocol.Selector{Kind: protocol.SelectorAriaLabel, Value: "Phone"}, `[aria-label="Phone"]`, false},
		{protocol.Selector{Kind: protocol.SelectorCSS, Value: "form > input.email"}, "form > input.email", false},
		{protocol.Selector{Kind: protocol.SelectorXPath, Value: "//input[1]"}, "//input[1]", true},
		{protocol.Selector{Kind: protocol.SelectorText, Value: "Next"}, `//body//*[text()[contains(., "Next")]]`, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.sel.Kind), func(t *testing.T) {
			q, err := Compile(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, q.Expr)
			assert.Equal(t, tt.xpath, q.XPath)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(protocol.Selector{Kind: protocol.SelectorID})
	assert.Error(t, err)

	_, err = Compile(protocol.Selector{Kind: "label", Value: "x"})
	assert.Error(t, err)
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"plain"`, XPathLiteral("plain"))
	assert.Equal(t, `'say "hi"'`, XPathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "fine", '"')`, XPathLiteral(`it's "fine"`))
}

func TestResolve_SingleStrategy(t *testing.T) {
	byName := &domtest.Element{Tag: "input", Attrs: map[string]string{"name": "email"}}
	byID := &domtest.Element{Tag: "input", Attrs: map[string]string{"id": "email"}}
	page := domtest.NewPage("", byName, byID)

	r := New(page, Options{Clock: &clock.Fake{}})

	el, found, err := r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorID, Value: "email"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, byID, el)

	// No fallback to other strategies when the chosen one misses.
	_, found, err = r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorPlaceholder, Value: "email"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{`[id="email"]`, `[placeholder="email"]`}, page.Queries())
}

func TestResolve_TextFirstInDocumentOrder(t *testing.T) {
	first := &domtest.Element{Tag: "span", Text: "Continue to Next step"}
	second := &domtest.Element{Tag: "button", Text: "Next"}
	page := domtest.NewPage("", first, second)

	r := New(page, Options{Clock: &clock.Fake{}})

	el, found, err := r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorText, Value: "Next"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, first, el)

	_, found, err = r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorText, Value: "next"})
	require.NoError(t, err)
	assert.False(t, found, "text match is case-sensitive")
}

func TestResolve_ScrollsOffscreenElement(t *testing.T) {
	el := &domtest.Element{Tag: "button", Attrs: map[string]string{"id": "submit"}, Offscreen: true}
	page := domtest.NewPage("", el)
	fake := &clock.Fake{}

	r := New(page, Options{Clock: fake})

	got, found, err := r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorID, Value: "submit"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, el, got)
	assert.Equal(t, []string{"scroll"}, el.Events())
	assert.Equal(t, 1, fake.Count(DefaultScrollSettle))

	// Already visible: no scroll, no settle.
	_, _, err = r.Resolve(context.Background(), protocol.Selector{Kind: protocol.SelectorID, Value: "submit"})
	require.NoError(t, err)
	assert.Equal(t, []string{"scroll"}, el.Events())
	assert.Equal(t, 1, fake.Count(DefaultScrollSettle))
}

func TestResolve_CancelledContext(t *testing.T) {
	page := domtest.NewPage("", &domtest.Element{Tag: "input", Attrs: map[string]string{"id": "a"}})
	r := New(page, Options{Clock: &clock.Fake{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, found, err := r.Resolve(ctx, protocol.Selector{Kind: protocol.SelectorID, Value: "a"})
	assert.False(t, found)
	assert.ErrorIs(t, err, context.Canceled)
}
