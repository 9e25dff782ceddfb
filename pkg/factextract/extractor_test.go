package factextract

import (
	"context"
	"testing"

	"github.com/liliang-cn/agentmem/pkg/llmprovider"
)

type stubProvider struct {
	reply string
	err   error
}

func (s stubProvider) Name() string { return "stub" }
func (s stubProvider) CreateMessage(ctx context.Context, messages []llmprovider.Message, system string) (llmprovider.Reply, error) {
	if s.err != nil {
		return llmprovider.Reply{}, s.err
	}
	return llmprovider.Reply{Content: s.reply}, nil
}

func TestExtractWellFormed(t *testing.T) {
	e := New(stubProvider{reply: `["Alice prefers Go", "Budget is 150万"]`})
	facts, err := e.Extract(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
}

func TestExtractMalformedYieldsEmpty(t *testing.T) {
	e := New(stubProvider{reply: "not json at all"})
	facts, err := e.Extract(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Extract should not error on malformed output: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected empty fact list, got %v", facts)
	}
}

func TestExtractEmptyMessages(t *testing.T) {
	e := New(stubProvider{reply: `[]`})
	facts, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected no facts for empty input, got %v", facts)
	}
}
