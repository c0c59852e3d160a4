package protocol

import (
	"encoding/json"
	"fmt"
)

// SelectorKind picks the lookup strategy used to locate an element.
type SelectorKind string

const (
	SelectorID          SelectorKind = "id"
	SelectorName        SelectorKind = "name"
	SelectorCSS         SelectorKind = "css"
	SelectorXPath       SelectorKind = "xpath"
	SelectorText        SelectorKind = "text"
	SelectorPlaceholder SelectorKind = "placeholder"
	SelectorAriaLabel   SelectorKind = "aria_label"
)

// Valid reports whether k is one of the known selector kinds.
func (k SelectorKind) Valid() bool {
	switch k {
	case SelectorID, SelectorName, SelectorCSS, SelectorXPath,
		SelectorText, SelectorPlaceholder, SelectorAriaLabel:
		return true
	}
	return false
}

// Selector is an abstract descriptor for one element on a page.
type Selector struct {
	Kind  SelectorKind `json:"type"`
	Value string       `json:"value"`
}

func (s Selector) String() string {
	return fmt.Sprintf("%s=%q", s.Kind, s.Value)
}

// Validate checks the selector invariants.
func (s Selector) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown selector type %q", s.Kind)
	}
	if s.Value == "" {
		return fmt.Errorf("selector %s has an empty value", s.Kind)
	}
	return nil
}

// UnmarshalJSON accepts both "type" and "kind" as the strategy key.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string `json:"type"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := raw.Type
	if kind == "" {
		kind = raw.Kind
	}
	s.Kind = SelectorKind(kind)
	s.Value = raw.Value
	return nil
}
