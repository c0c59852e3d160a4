// Package protocol defines the instruction document exchanged with the
// instruction generator and the failure taxonomy reported back to callers.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Navigation describes how to leave a page.
type Navigation struct {
	HasNext    bool         `json:"has_next"`
	NextButton *Instruction `json:"next_button,omitempty"`
}

// UnmarshalJSON defaults a next_button without a type to click_button; the
// generator schema only carries its selector.
func (n *Navigation) UnmarshalJSON(data []byte) error {
	type plain Navigation
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.NextButton != nil && raw.NextButton.Kind() == "" {
		raw.NextButton.Action = ClickButton{}
	}
	*n = Navigation(raw)
	return nil
}

// Validation lists the text markers used to judge a page.
type Validation struct {
	SuccessIndicators []string `json:"success_indicators"`
	ErrorIndicators   []string `json:"error_indicators"`
}

// PageInstructionSet is the plan for one page of a multi-page form.
type PageInstructionSet struct {
	PageNumber   int           `json:"page_number"`
	PageURL      string        `json:"page_url"`
	PageTitle    string        `json:"page_title"`
	Instructions []Instruction `json:"instructions"`
	Navigation   Navigation    `json:"navigation"`
	Validation   Validation    `json:"validation"`
}

// Document is the full automation plan for one application flow.
type Document struct {
	Success                   bool                 `json:"success"`
	Pages                     []PageInstructionSet `json:"pages"`
	TotalPages                int                  `json:"total_pages"`
	EstimatedCompletionTimeMs int64                `json:"estimated_completion_time_ms"`
	UserProfileUsed           map[string]any       `json:"user_profile_used,omitempty"`
}

// UnmarshalJSON accepts the generator's older estimated_completion_time key.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var raw struct {
		plain
		EstimatedCompletionTime *int64 `json:"estimated_completion_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document(raw.plain)
	if d.EstimatedCompletionTimeMs == 0 && raw.EstimatedCompletionTime != nil {
		d.EstimatedCompletionTimeMs = *raw.EstimatedCompletionTime
	}
	return nil
}

// Decode reads and validates a document. Malformed input is reported as an
// InvalidDocument error.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, NewError(InvalidDocument, "decode: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Parse is Decode over a byte slice.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewError(InvalidDocument, "decode: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural invariants the executor relies on. Page
// instructions are checked one at a time when they run (see
// Instruction.Check), so a malformed optional step cannot sink the whole
// document. The next button has no such recovery and is checked here.
func (d *Document) Validate() error {
	if d == nil {
		return NewError(InvalidDocument, "document is nil")
	}
	if !d.Success {
		return NewError(InvalidDocument, "generator reported success=false")
	}
	if len(d.Pages) == 0 {
		return NewError(InvalidDocument, "document has no pages")
	}
	if d.TotalPages != len(d.Pages) {
		return NewError(InvalidDocument, "total_pages is %d but %d pages were supplied", d.TotalPages, len(d.Pages))
	}
	for i, page := range d.Pages {
		if page.PageNumber < 1 {
			return NewError(InvalidDocument, "page %d: page_number must be >= 1", i+1)
		}
		last := i == len(d.Pages)-1
		if !last && page.Navigation.HasNext {
			if page.Navigation.NextButton == nil {
				return NewError(InvalidDocument, "page %d: has_next without next_button", page.PageNumber)
			}
			if err := validateInstruction(*page.Navigation.NextButton); err != nil {
				return NewError(InvalidDocument, "page %d next_button: %v", page.PageNumber, err)
			}
		}
	}
	return nil
}

func validateInstruction(ins Instruction) error {
	if ins.Action == nil {
		return fmt.Errorf("missing instruction type")
	}
	if err := ins.Check(); err != nil {
		return err
	}
	return nil
}
