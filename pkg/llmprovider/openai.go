package llmprovider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider is a concrete Provider backed by the OpenAI chat completion
// API, grounded on the pack's pervasive use of sashabaranov/go-openai.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider from a resolved ProviderConfig.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) CreateMessage(ctx context.Context, messages []Message, system string) (Reply, error) {
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: chatMsgs,
	})
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, nil
	}
	return Reply{Content: resp.Choices[0].Message.Content}, nil
}
