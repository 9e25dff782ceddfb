package llmprovider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChainProvider wraps a langchaingo llms.Model so any backend it supports
// satisfies Provider uniformly, grounded on the pack's langchaingo usage for
// its Ollama adapter (killallgit-ryan's chat.LangChainClient).
type LangChainProvider struct {
	llm  llms.Model
	name string
}

// NewOllamaProvider builds a Provider talking to a local or remote Ollama
// server over langchaingo's ollama adapter.
func NewOllamaProvider(cfg ProviderConfig) (*LangChainProvider, error) {
	var opts []ollama.Option
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: ollama: %w", err)
	}
	return &LangChainProvider{llm: llm, name: "ollama"}, nil
}

// NewAnthropicProvider builds a Provider backed by langchaingo's Anthropic
// adapter, the second entry in the DOMAIN STACK's LM backend list.
func NewAnthropicProvider(cfg ProviderConfig) (*LangChainProvider, error) {
	var opts []anthropic.Option
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: anthropic: %w", err)
	}
	return &LangChainProvider{llm: llm, name: "anthropic"}, nil
}

// NewGoogleProvider builds a Provider backed by langchaingo's Google
// Generative AI adapter (covers both KindGoogle and KindGemini selections).
func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*LangChainProvider, error) {
	var opts []googleai.Option
	if cfg.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}
	llm, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: google: %w", err)
	}
	return &LangChainProvider{llm: llm, name: "google"}, nil
}

func (p *LangChainProvider) Name() string { return p.name }

func (p *LangChainProvider) CreateMessage(ctx context.Context, messages []Message, system string) (Reply, error) {
	parts := make([]llms.MessageContent, 0, len(messages)+1)
	if system != "" {
		parts = append(parts, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, m := range messages {
		parts = append(parts, llms.TextParts(roleToMessageType(m.Role), m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, parts)
	if err != nil {
		return Reply{}, fmt.Errorf("llmprovider: %s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, nil
	}
	return Reply{Content: resp.Choices[0].Content}, nil
}

func roleToMessageType(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	case "tool":
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}
