package manager

import (
	"context"

	"github.com/liliang-cn/agentmem/pkg/scopedmem"
	"github.com/liliang-cn/agentmem/pkg/workingmem"
)

// PersonaFn renders a bounded persona Markdown block for userID, truncated
// to maxTokens. The caller of GetContextForLLM supplies it; this package
// does not build one from the Persona Builder (C12).
type PersonaFn func(ctx context.Context, userID string, maxTokens int) (string, error)

// LLMContext is the document returned by GetContextForLLM (§4.9).
type LLMContext struct {
	Messages        []workingmem.ChatMessage
	ToolHistory     []workingmem.ToolCall
	Metadata        map[string]any
	SimilarEpisodes []scopedmem.Episode
	UserPersona     string
}

// GetContextForLLM assembles the document injected into the next LLM call:
// the current working memory plus, optionally, recent episodic matches and
// a token-bounded persona block (§4.9).
func (m *Manager) GetContextForLLM(ctx context.Context, includeEpisodic, includePersona bool, maxPersonaTokens int, persona PersonaFn) (LLMContext, error) {
	doc := m.working.ToDocument()
	out := LLMContext{
		Messages:    doc.Messages,
		ToolHistory: doc.Tools,
		Metadata:    doc.Metadata,
	}

	if includeEpisodic {
		ep, err := m.ensureEpisodic()
		if err != nil {
			return out, err
		}
		out.SimilarEpisodes = ep.List(5)
	}

	if includePersona && persona != nil {
		text, err := persona(ctx, m.userID, maxPersonaTokens)
		if err != nil {
			return out, err
		}
		out.UserPersona = text
	}

	return out, nil
}
