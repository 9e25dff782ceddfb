// Package llmprovider wraps the opaque language-model collaborator (§1, §6)
// behind one narrow interface, with a deterministic auto-detect function
// (§9, Testable Property 7) choosing among configured backends.
package llmprovider

import "context"

// Message is one turn in a conversation passed to the language model.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Reply is the language model's response to a CreateMessage call.
type Reply struct {
	Content string
}

// Provider is the contract the core consumes from the language model (§6):
// create_message(messages, system?, tools?) -> {content}.
type Provider interface {
	CreateMessage(ctx context.Context, messages []Message, system string) (Reply, error)
	Name() string
}

// Kind enumerates the recognised provider selections (§6).
type Kind string

const (
	KindAuto      Kind = "auto"
	KindOpenAI    Kind = "openai"
	KindGoogle    Kind = "google"
	KindOllama    Kind = "ollama"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
)

// autoDetectOrder is the fixed priority list §6 references ("auto walks an
// ordered candidate list keyed on presence of provider API credentials").
// Kept as an unexported package-level constant, not environment-derived, so
// AutoDetect stays a pure function of its input map (Testable Property 7).
var autoDetectOrder = []struct {
	kind    Kind
	credKey string
}{
	{KindOpenAI, "OPENAI_API_KEY"},
	{KindAnthropic, "ANTHROPIC_API_KEY"},
	{KindGoogle, "GOOGLE_API_KEY"},
	{KindGemini, "GEMINI_API_KEY"},
	{KindOllama, "OLLAMA_HOST"},
}

// ProviderConfig is the resolved, immutable provider selection (§9 "dynamic
// config dataclasses... map to a validated configuration record").
type ProviderConfig struct {
	Kind     Kind
	Model    string
	APIKey   string
	BaseURL  string
}

// AutoDetect is a pure function: given a fixed environment map it always
// returns the same ProviderConfig, walking autoDetectOrder and picking the
// first candidate whose credential key is present and non-empty.
func AutoDetect(env map[string]string, explicit Kind, model string) (ProviderConfig, error) {
	if explicit != "" && explicit != KindAuto {
		return ProviderConfig{
			Kind:    explicit,
			Model:   model,
			APIKey:  env[credKeyFor(explicit)],
			BaseURL: env[explicit.baseURLKey()],
		}, nil
	}

	for _, cand := range autoDetectOrder {
		if v, ok := env[cand.credKey]; ok && v != "" {
			return ProviderConfig{
				Kind:    cand.kind,
				Model:   model,
				APIKey:  v,
				BaseURL: env[cand.kind.baseURLKey()],
			}, nil
		}
	}

	return ProviderConfig{}, ErrNoCredentials
}

func credKeyFor(k Kind) string {
	for _, cand := range autoDetectOrder {
		if cand.kind == k {
			return cand.credKey
		}
	}
	return ""
}

func (k Kind) baseURLKey() string {
	switch k {
	case KindOpenAI:
		return "OPENAI_BASE_URL"
	case KindAnthropic:
		return "ANTHROPIC_BASE_URL"
	case KindOllama:
		return "OLLAMA_BASE_URL"
	default:
		return ""
	}
}
