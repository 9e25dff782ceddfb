package updatedecider

import (
	"context"
	"errors"
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

func TestDecideUpdateMapsLabelToRealID(t *testing.T) {
	d := New(stubProvider{reply: `{"memory":[{"id":"0","text":"合同金额 150 万","event":"UPDATE","old_memory":"合同金额 100 万"}]}`})
	decision, err := d.Decide(context.Background(), "合同金额 150 万", []ExistingMemory{{ID: "real-id-1", Text: "合同金额 100 万"}})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(decision.Memory) != 1 {
		t.Fatalf("expected 1 item, got %d", len(decision.Memory))
	}
	if decision.Memory[0].ID != "real-id-1" {
		t.Fatalf("expected label mapped back to real id, got %q", decision.Memory[0].ID)
	}
}

func TestDecideFailsClosedOnLMError(t *testing.T) {
	d := New(stubProvider{err: errors.New("timeout")})
	decision, err := d.Decide(context.Background(), "new fact", nil)
	if err != nil {
		t.Fatalf("Decide should not error: %v", err)
	}
	if len(decision.Memory) != 1 || decision.Memory[0].Event != EventAdd {
		t.Fatalf("expected fallback ADD, got %+v", decision.Memory)
	}
}

func TestDecideFailsClosedOnMalformedJSON(t *testing.T) {
	d := New(stubProvider{reply: "I think this should be added"})
	decision, err := d.Decide(context.Background(), "new fact", nil)
	if err != nil {
		t.Fatalf("Decide should not error: %v", err)
	}
	if decision.Memory[0].Event != EventAdd {
		t.Fatalf("expected fallback ADD, got %+v", decision.Memory)
	}
}

func TestDecisionClosure(t *testing.T) {
	d := New(stubProvider{reply: `{"memory":[{"id":"0","text":"a","event":"NONE"}]}`})
	existing := []ExistingMemory{
		{ID: "id-a", Text: "a"},
		{ID: "id-b", Text: "b"},
	}
	decision, err := d.Decide(context.Background(), "new fact", existing)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	seen := map[string]bool{}
	for _, item := range decision.Memory {
		if item.Event == EventAdd {
			continue
		}
		seen[item.ID] = true
	}
	for _, m := range existing {
		if !seen[m.ID] {
			t.Fatalf("existing id %q missing from closed decision", m.ID)
		}
	}
}
