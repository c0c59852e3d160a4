// Package ai turns a page snapshot and a user profile into an instruction
// document, either through a language model or a deterministic fallback.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

// ErrNoAPIKey is returned when a model provider is requested without a key.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider defines the interface for instruction generation
type Provider interface {
	GenerateDocument(ctx context.Context, snap dom.Snapshot, p *profile.Profile) (*protocol.Document, error)
}

// Options configures a model provider.
type Options struct {
	Model   string
	APIKey  string // read from the environment when empty
	BaseURL string // API endpoint override
	Logger  *zap.Logger
}

// NewProvider creates a new provider based on the provider name
func NewProvider(name string, opts Options) (Provider, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(opts)
	case "openai", "gpt":
		return NewOpenAIProvider(opts)
	case "gemini", "google":
		return NewGeminiProvider(opts)
	case "fallback", "none":
		return NewFallbackProvider(opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai, gemini, fallback)", name)
	}
}

// NewProviderOrFallback is NewProvider, except that a missing API key
// selects the fallback provider instead of failing.
func NewProviderOrFallback(name string, opts Options) (Provider, error) {
	p, err := NewProvider(name, opts)
	if errors.Is(err, ErrNoAPIKey) {
		if opts.Logger != nil {
			opts.Logger.Warn("no API key, using fallback generator", zap.String("provider", name))
		}
		return NewFallbackProvider(opts.Logger), nil
	}
	return p, err
}

// apiKey returns explicit, or the first non-empty environment variable.
func apiKey(explicit string, envs ...string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, env := range envs {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set %s", ErrNoAPIKey, envs[0])
}

// completer sends one system+user prompt pair and returns the text reply.
type completer func(ctx context.Context, system, user string) (string, error)

// generate is the shared request/parse cycle of the model providers.
func generate(ctx context.Context, name string, complete completer, logger *zap.Logger, snap dom.Snapshot, p *profile.Profile) (*protocol.Document, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}
	fm, err := BuildFormMap(snap)
	if err != nil {
		return nil, err
	}
	userPrompt, err := buildUserPrompt(fm, p)
	if err != nil {
		return nil, err
	}

	logger.Debug("requesting document",
		zap.String("url", snap.URL),
		zap.Int("fields", len(fm.Fields)),
		zap.Int("buttons", len(fm.Buttons)))

	text, err := complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", name, err)
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from %s", name)
	}

	doc, err := parseDocumentJSON(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", name, err)
	}
	if doc.UserProfileUsed == nil {
		doc.UserProfileUsed = p.Map()
	}
	return doc, nil
}
