package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the instruction tag carried on the wire.
type Kind string

const (
	KindFillField     Kind = "fill_field"
	KindSelectOption  Kind = "select_option"
	KindClickButton   Kind = "click_button"
	KindCheckCheckbox Kind = "check_checkbox"
	KindUploadFile    Kind = "upload_file"
	KindScroll        Kind = "scroll"
	KindWait          Kind = "wait"
	KindValidatePage  Kind = "validate_page"
)

// Action is the kind-specific payload of an instruction. The set of
// implementations is closed: only this package can add one.
type Action interface {
	Kind() Kind
	action()
}

// FillField types Text into a text input or textarea.
type FillField struct {
	Text string
}

// SelectOption picks the option whose value or label equals Value.
type SelectOption struct {
	Value string
}

// ClickButton clicks the target element.
type ClickButton struct{}

// CheckCheckbox brings a checkbox to the Checked state.
type CheckCheckbox struct {
	Checked bool
}

// UploadFile attaches local files to a file input.
type UploadFile struct {
	Paths []string
}

// Scroll brings the target into view, or scrolls the window by (X, Y)
// when the instruction has no selector.
type Scroll struct {
	X int
	Y int
}

// Wait suspends execution.
type Wait struct {
	Duration time.Duration
}

// ValidatePage re-checks the page's error indicators mid-page.
type ValidatePage struct{}

// Unknown preserves an unrecognised tag so the failure surfaces when the
// instruction is executed rather than when the document is decoded.
type Unknown struct {
	Type string
}

func (FillField) Kind() Kind     { return KindFillField }
func (SelectOption) Kind() Kind  { return KindSelectOption }
func (ClickButton) Kind() Kind   { return KindClickButton }
func (CheckCheckbox) Kind() Kind { return KindCheckCheckbox }
func (UploadFile) Kind() Kind    { return KindUploadFile }
func (Scroll) Kind() Kind        { return KindScroll }
func (Wait) Kind() Kind          { return KindWait }
func (ValidatePage) Kind() Kind  { return KindValidatePage }
func (u Unknown) Kind() Kind     { return Kind(u.Type) }

func (FillField) action()     {}
func (SelectOption) action()  {}
func (ClickButton) action()   {}
func (CheckCheckbox) action() {}
func (UploadFile) action()    {}
func (Scroll) action()        {}
func (Wait) action()          {}
func (ValidatePage) action()  {}
func (Unknown) action()       {}

// Instruction is one atomic automation step.
type Instruction struct {
	Action           Action
	Selector         *Selector
	Required         bool
	FieldDescription string
	Confidence       float64
}

// Kind returns the instruction tag, or "" when no action is set.
func (i Instruction) Kind() Kind {
	if i.Action == nil {
		return ""
	}
	return i.Action.Kind()
}

// Check reports a malformed selector as ElementNotFound, since no element
// can match it, and an out of range confidence as InvalidDocument.
func (i Instruction) Check() error {
	if i.Selector != nil {
		if err := i.Selector.Validate(); err != nil {
			return NewError(ElementNotFound, "%v", err)
		}
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return NewError(InvalidDocument, "confidence %.2f outside [0,1]", i.Confidence)
	}
	return nil
}

// wireInstruction is the JSON shape produced by the instruction generator.
type wireInstruction struct {
	Type             string          `json:"type"`
	Kind             string          `json:"kind,omitempty"`
	Selector         *Selector       `json:"selector,omitempty"`
	Value            json.RawMessage `json:"value,omitempty"`
	Checked          *bool           `json:"checked,omitempty"`
	FilePath         string          `json:"file_path,omitempty"`
	Duration         *int64          `json:"duration,omitempty"`
	FieldDescription string          `json:"field_description,omitempty"`
	Confidence       float64         `json:"confidence"`
	Required         bool            `json:"required"`
}

// UnmarshalJSON decodes the wire shape into the typed action.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var w wireInstruction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tag := w.Type
	if tag == "" {
		tag = w.Kind
	}

	action, err := decodeAction(Kind(tag), w)
	if err != nil {
		return fmt.Errorf("instruction %q: %w", tag, err)
	}

	*i = Instruction{
		Action:           action,
		Selector:         w.Selector,
		Required:         w.Required,
		FieldDescription: w.FieldDescription,
		Confidence:       w.Confidence,
	}
	return nil
}

// MarshalJSON encodes the instruction in the generator's wire shape.
func (i Instruction) MarshalJSON() ([]byte, error) {
	w := wireInstruction{
		Type:             string(i.Kind()),
		Selector:         i.Selector,
		FieldDescription: i.FieldDescription,
		Confidence:       i.Confidence,
		Required:         i.Required,
	}

	var value any
	switch a := i.Action.(type) {
	case FillField:
		value = a.Text
	case SelectOption:
		value = a.Value
	case CheckCheckbox:
		checked := a.Checked
		w.Checked = &checked
	case UploadFile:
		if len(a.Paths) == 1 {
			w.FilePath = a.Paths[0]
		} else if len(a.Paths) > 1 {
			value = a.Paths
		}
	case Scroll:
		if a.X != 0 || a.Y != 0 {
			value = map[string]int{"x": a.X, "y": a.Y}
		}
	case Wait:
		ms := a.Duration.Milliseconds()
		w.Duration = &ms
	}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	}
	return json.Marshal(w)
}

func decodeAction(kind Kind, w wireInstruction) (Action, error) {
	switch kind {
	case KindFillField:
		text, err := rawString(w.Value)
		if err != nil {
			return nil, err
		}
		return FillField{Text: text}, nil

	case KindSelectOption:
		value, err := rawString(w.Value)
		if err != nil {
			return nil, err
		}
		return SelectOption{Value: value}, nil

	case KindClickButton:
		return ClickButton{}, nil

	case KindCheckCheckbox:
		if w.Checked != nil {
			return CheckCheckbox{Checked: *w.Checked}, nil
		}
		checked, err := rawBool(w.Value, true)
		if err != nil {
			return nil, err
		}
		return CheckCheckbox{Checked: checked}, nil

	case KindUploadFile:
		if w.FilePath != "" {
			return UploadFile{Paths: []string{w.FilePath}}, nil
		}
		paths, err := rawStrings(w.Value)
		if err != nil {
			return nil, err
		}
		return UploadFile{Paths: paths}, nil

	case KindScroll:
		x, y, err := rawOffset(w.Value)
		if err != nil {
			return nil, err
		}
		return Scroll{X: x, Y: y}, nil

	case KindWait:
		if w.Duration != nil {
			return Wait{Duration: time.Duration(*w.Duration) * time.Millisecond}, nil
		}
		ms, err := rawInt(w.Value)
		if err != nil {
			return nil, err
		}
		return Wait{Duration: time.Duration(ms) * time.Millisecond}, nil

	case KindValidatePage:
		return ValidatePage{}, nil

	default:
		return Unknown{Type: string(kind)}, nil
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawString renders scalars as text; generators sometimes emit numbers or
// booleans for text fields.
func rawString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("value must be a scalar, got %s", string(raw))
	}
}

func rawBool(raw json.RawMessage, def bool) (bool, error) {
	if isNull(raw) {
		return def, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "checked", "on", "1":
			return true, nil
		case "false", "no", "unchecked", "off", "0", "":
			return false, nil
		}
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("value %s is not a checkbox state", string(raw))
}

func rawStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return []string{s}, nil
}

func rawInt(raw json.RawMessage) (int64, error) {
	if isNull(raw) {
		return 0, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a duration in milliseconds", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("value %s is not a number", string(raw))
}

func rawOffset(raw json.RawMessage) (int, int, error) {
	if isNull(raw) {
		return 0, 0, nil
	}
	var xy struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(raw, &xy); err == nil {
		return xy.X, xy.Y, nil
	}
	y, err := rawInt(raw)
	if err != nil {
		return 0, 0, err
	}
	return 0, int(y), nil
}
