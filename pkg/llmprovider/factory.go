package llmprovider

import (
	"context"
	"fmt"
)

// New builds the concrete Provider for cfg.Kind, the single entry point the
// engine facade calls after AutoDetect resolves a ProviderConfig.
func New(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return NewOpenAIProvider(cfg), nil
	case KindOllama:
		return NewOllamaProvider(cfg)
	case KindAnthropic:
		return NewAnthropicProvider(cfg)
	case KindGoogle, KindGemini:
		return NewGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("llmprovider: unsupported kind %q", cfg.Kind)
	}
}
