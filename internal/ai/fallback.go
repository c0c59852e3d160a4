package ai

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

// FallbackConfidence is the confidence of every fallback instruction.
const FallbackConfidence = 0.7

// msPerInstruction feeds the completion time estimate.
const msPerInstruction = 2000

// FallbackProvider builds a one-page document without a model by matching
// the page's form fields against the profile. Every instruction is
// optional, so a wrong guess never aborts a run.
type FallbackProvider struct {
	logger *zap.Logger
}

// NewFallbackProvider creates the model-free provider.
func NewFallbackProvider(logger *zap.Logger) *FallbackProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackProvider{logger: logger.Named("fallback")}
}

// GenerateDocument implements Provider.
func (f *FallbackProvider) GenerateDocument(ctx context.Context, snap dom.Snapshot, p *profile.Profile) (*protocol.Document, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fm, err := BuildFormMap(snap)
	if err != nil {
		return nil, err
	}

	instructions := []protocol.Instruction{}
	for _, field := range fm.Fields {
		ins, ok := fallbackInstruction(field, p)
		if !ok {
			continue
		}
		instructions = append(instructions, ins)
	}

	f.logger.Debug("built fallback document",
		zap.String("url", snap.URL),
		zap.Int("fields", len(fm.Fields)),
		zap.Int("instructions", len(instructions)))

	title := snap.Title
	if title == "" {
		title = "Job Application Form"
	}
	return &protocol.Document{
		Success: true,
		Pages: []protocol.PageInstructionSet{{
			PageNumber:   1,
			PageURL:      snap.URL,
			PageTitle:    title,
			Instructions: instructions,
			Navigation:   protocol.Navigation{HasNext: false},
			Validation: protocol.Validation{
				SuccessIndicators: []string{},
				ErrorIndicators:   []string{"Required field missing"},
			},
		}},
		TotalPages:                1,
		EstimatedCompletionTimeMs: int64(len(instructions)) * msPerInstruction,
		UserProfileUsed:           p.Map(),
	}, nil
}

func fallbackInstruction(field Field, p *profile.Profile) (protocol.Instruction, bool) {
	sel := field.Selector
	ins := protocol.Instruction{
		Selector:         &sel,
		FieldDescription: field.Description(),
		Confidence:       FallbackConfidence,
	}

	switch field.Type {
	case "checkbox", "radio", "submit", "button":
		return ins, false
	case "file":
		if p.ResumePath == "" || !looksLikeResume(field) {
			return ins, false
		}
		ins.Action = protocol.UploadFile{Paths: []string{p.ResumePath}}
		return ins, true
	}

	m, ok := matchField(field, p)
	if !ok {
		return ins, false
	}
	if field.Type == "select" {
		ins.Action = protocol.SelectOption{Value: m.Value}
	} else {
		ins.Action = protocol.FillField{Text: m.Value}
	}
	return ins, true
}

// matchField tries each hint in priority order.
func matchField(field Field, p *profile.Profile) (profile.Mapping, bool) {
	for _, hint := range field.Hints() {
		if m, ok := p.Match(hint); ok {
			return m, true
		}
	}
	return profile.Mapping{}, false
}

func looksLikeResume(field Field) bool {
	for _, hint := range field.Hints() {
		h := strings.ToLower(hint)
		if strings.Contains(h, "resume") || strings.Contains(h, "cv") {
			return true
		}
	}
	return false
}
