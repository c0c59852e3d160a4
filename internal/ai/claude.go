package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

const maxResponseTokens = 4096

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(opts Options) (*ClaudeProvider, error) {
	key, err := apiKey(opts.APIKey, "JOBFILL_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(key)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ClaudeProvider{
		client: &client,
		model:  model,
		logger: logger.Named("claude"),
	}, nil
}

// GenerateDocument generates an instruction document for the page
func (p *ClaudeProvider) GenerateDocument(ctx context.Context, snap dom.Snapshot, prof *profile.Profile) (*protocol.Document, error) {
	return generate(ctx, "Claude", p.complete, p.logger, snap, prof)
}

func (p *ClaudeProvider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}

	// Extract text content
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
