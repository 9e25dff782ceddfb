package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder is a concrete Provider backed by OpenAI's embeddings API,
// grounded on the pack's go-agent-memory SupabaseMemory.generateEmbedding
// (openai.EmbeddingRequest / resp.Data[0].Embedding, float64->float32
// conversion). This is the default embedder cmd/memctl wires when the
// caller does not supply its own (§1 treats the embedder as an opaque
// external collaborator the core never constructs — the CLI, as a caller,
// is free to construct one).
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewOpenAIEmbedder builds an embedder for the given model name ("" defaults
// to text-embedding-3-small) and its known output dimension.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dim int) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  resolveModel(model),
		dim:    dim,
	}
}

func resolveModel(name string) openai.EmbeddingModel {
	switch name {
	case "text-embedding-3-large":
		return openai.LargeEmbedding3
	case "text-embedding-ada-002":
		return openai.AdaEmbeddingV2
	case "", "text-embedding-3-small":
		return openai.SmallEmbedding3
	default:
		return openai.SmallEmbedding3
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: openai returned no data")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }
