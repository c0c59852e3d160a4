package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements the Provider interface using Google Gemini
// with JSON output.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(opts Options) (*GeminiProvider, error) {
	key, err := apiKey(opts.APIKey, "JOBFILL_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if err != nil {
		return nil, err
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GeminiProvider{client: client, model: model, logger: logger.Named("gemini")}, nil
}

// GenerateDocument generates an instruction document for the page
func (p *GeminiProvider) GenerateDocument(ctx context.Context, snap dom.Snapshot, prof *profile.Profile) (*protocol.Document, error) {
	return generate(ctx, "Gemini", p.complete, p.logger, snap, prof)
}

func (p *GeminiProvider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(user),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.3),
			ResponseMIMEType:  "application/json",
			MaxOutputTokens:   maxResponseTokens,
		},
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
