package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/clock"
	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/dom/domtest"
	"github.com/v0xg/jobfill/internal/protocol"
	"github.com/v0xg/jobfill/internal/resolver"
)

func byID(id string) *protocol.Selector {
	return &protocol.Selector{Kind: protocol.SelectorID, Value: id}
}

func newExecutor(page *domtest.Page) (*Executor, *clock.Fake) {
	fake := &clock.Fake{}
	return New(page, Options{Clock: fake}), fake
}

func TestFillField(t *testing.T) {
	el := &domtest.Element{Tag: "input", Type: "text", Attrs: map[string]string{"id": "email"}, Value: "old"}
	ex, fake := newExecutor(domtest.NewPage("", el))

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.FillField{Text: "a@b.co"},
		Selector: byID("email"),
	})
	require.NoError(t, err)

	assert.Equal(t, "a@b.co", el.Value)
	assert.Equal(t, []string{
		"clear", "focus",
		"input", "input", "input", "input", "input", "input",
		"change", "blur",
	}, el.Events())
	assert.Equal(t, 6, fake.Count(DefaultKeystrokeDelay))
}

func TestFillField_EmptyText(t *testing.T) {
	el := &domtest.Element{Tag: "input", Attrs: map[string]string{"id": "note"}, Value: "keep?"}
	ex, _ := newExecutor(domtest.NewPage("", el))

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.FillField{},
		Selector: byID("note"),
	}))
	assert.Empty(t, el.Value)
	assert.Equal(t, 1, el.Count("change"))
	assert.Zero(t, el.Count("input"))
}

func TestSelectOption(t *testing.T) {
	options := []dom.Option{
		{Value: "", Label: "Choose..."},
		{Value: "us", Label: " United States "},
		{Value: "ca", Label: "Canada"},
	}

	tests := []struct {
		name  string
		value string
		want  string
		kind  protocol.ErrorKind
	}{
		{name: "by value", value: "ca", want: "ca"},
		{name: "by trimmed label", value: "United States", want: "us"},
		{name: "no match", value: "Mexico", kind: protocol.OptionNotFound},
		{name: "label match is exact", value: "canada", kind: protocol.OptionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := &domtest.Element{Tag: "select", Attrs: map[string]string{"id": "country"}, Options: options}
			ex, _ := newExecutor(domtest.NewPage("", el))

			err := ex.Execute(context.Background(), protocol.Instruction{
				Action:   protocol.SelectOption{Value: tt.value},
				Selector: byID("country"),
			})
			if tt.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, protocol.KindOf(err))
				assert.Zero(t, el.Count("change"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, el.Value)
			assert.Equal(t, 1, el.Count("change"))
		})
	}
}

func TestSelectOption_NotASelect(t *testing.T) {
	el := &domtest.Element{Tag: "input", Attrs: map[string]string{"id": "country"}}
	ex, _ := newExecutor(domtest.NewPage("", el))

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.SelectOption{Value: "us"},
		Selector: byID("country"),
	})
	assert.ErrorIs(t, err, protocol.ErrOptionNotFound)
}

func TestClickButton(t *testing.T) {
	clicked := false
	el := &domtest.Element{Tag: "button", Attrs: map[string]string{"id": "go"}, OnClick: func() { clicked = true }}
	ex, fake := newExecutor(domtest.NewPage("", el))

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.ClickButton{},
		Selector: byID("go"),
	}))
	assert.True(t, clicked)
	assert.Equal(t, []string{"scroll", "click"}, el.Events())
	assert.Equal(t, []time.Duration{resolver.DefaultScrollSettle}, fake.Sleeps())
}

func TestClickButton_Disabled(t *testing.T) {
	el := &domtest.Element{Tag: "button", Attrs: map[string]string{"id": "go"}, Disabled: true}
	ex, _ := newExecutor(domtest.NewPage("", el))

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.ClickButton{},
		Selector: byID("go"),
	})
	assert.ErrorIs(t, err, protocol.ErrElementDisabled)
	assert.Zero(t, el.Count("click"))
}

func TestCheckCheckbox_Idempotent(t *testing.T) {
	el := &domtest.Element{Tag: "input", Type: "checkbox", Attrs: map[string]string{"id": "terms"}}
	ex, _ := newExecutor(domtest.NewPage("", el))
	ins := protocol.Instruction{Action: protocol.CheckCheckbox{Checked: true}, Selector: byID("terms")}

	require.NoError(t, ex.Execute(context.Background(), ins))
	require.NoError(t, ex.Execute(context.Background(), ins))
	assert.True(t, el.Checked)
	assert.Equal(t, 1, el.Count("click"))

	ins.Action = protocol.CheckCheckbox{Checked: false}
	require.NoError(t, ex.Execute(context.Background(), ins))
	assert.False(t, el.Checked)
	assert.Equal(t, 2, el.Count("click"))
}

func TestCheckCheckbox_NotACheckbox(t *testing.T) {
	el := &domtest.Element{Tag: "input", Type: "radio", Attrs: map[string]string{"id": "terms"}}
	ex, _ := newExecutor(domtest.NewPage("", el))

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.CheckCheckbox{Checked: true},
		Selector: byID("terms"),
	})
	assert.ErrorIs(t, err, protocol.ErrNotACheckbox)
	assert.Zero(t, el.Count("click"))
}

func TestUploadFile(t *testing.T) {
	el := &domtest.Element{Tag: "input", Type: "file", Attrs: map[string]string{"id": "resume"}}
	ex, _ := newExecutor(domtest.NewPage("", el))

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.UploadFile{Paths: []string{"/tmp/cv.pdf"}},
		Selector: byID("resume"),
	}))
	assert.Equal(t, []string{"/tmp/cv.pdf"}, el.Files)
}

func TestScroll(t *testing.T) {
	el := &domtest.Element{Tag: "div", Attrs: map[string]string{"id": "section"}}
	page := domtest.NewPage("", el)
	ex, fake := newExecutor(page)

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.Scroll{},
		Selector: byID("section"),
	}))
	assert.Equal(t, 1, el.Count("scroll"))

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action: protocol.Scroll{Y: 400},
	}))
	assert.Equal(t, [][2]int{{0, 400}}, page.Scrolls())
	assert.Equal(t, 2, fake.Count(resolver.DefaultScrollSettle))
}

func TestWait(t *testing.T) {
	ex, fake := newExecutor(domtest.NewPage(""))

	require.NoError(t, ex.Execute(context.Background(), protocol.Instruction{
		Action: protocol.Wait{Duration: 1500 * time.Millisecond},
	}))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, fake.Sleeps())
}

func TestWait_RealClockHonoursCancel(t *testing.T) {
	ex := New(domtest.NewPage(""), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ex.Execute(ctx, protocol.Instruction{Action: protocol.Wait{Duration: time.Minute}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestElementNotFound(t *testing.T) {
	ex, _ := newExecutor(domtest.NewPage(""))

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.FillField{Text: "x"},
		Selector: byID("missing"),
	})
	assert.ErrorIs(t, err, protocol.ErrElementNotFound)

	err = ex.Execute(context.Background(), protocol.Instruction{Action: protocol.ClickButton{}})
	assert.ErrorIs(t, err, protocol.ErrElementNotFound)
}

func TestUnknownInstructionKind(t *testing.T) {
	ex, _ := newExecutor(domtest.NewPage(""))

	for _, action := range []protocol.Action{protocol.Unknown{Type: "hover"}, protocol.ValidatePage{}, nil} {
		err := ex.Execute(context.Background(), protocol.Instruction{Action: action})
		assert.ErrorIs(t, err, protocol.ErrUnknownInstructionKind)
	}
}

func TestDetachedElement(t *testing.T) {
	el := &domtest.Element{Tag: "button", Attrs: map[string]string{"id": "go"}}
	page := domtest.NewPage("", el)
	ex, _ := newExecutor(page)

	// Re-rendered: the handle still matches but is no longer attached.
	page.Replace("", el)

	err := ex.Execute(context.Background(), protocol.Instruction{
		Action:   protocol.ClickButton{},
		Selector: byID("go"),
	})
	require.Error(t, err)
	assert.Equal(t, protocol.ElementNotFound, protocol.KindOf(err))
	assert.True(t, errors.Is(err, domtest.ErrDetached))
}
