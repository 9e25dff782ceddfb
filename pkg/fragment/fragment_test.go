package fragment

import (
	"context"
	"errors"
	"testing"
	"time"

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

func TestExtractConfidenceAveragesPresentSlots(t *testing.T) {
	e := New(stubProvider{reply: `{
		"task": {"value": "book flight", "confidence": 0.8},
		"emotion": {"value": "excited", "confidence": 0.4}
	}`})
	frag, err := e.Extract(context.Background(), "I'm going to book a flight!", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.Task == nil || frag.Emotion == nil {
		t.Fatalf("expected task and emotion slots, got %+v", frag)
	}
	want := (0.8 + 0.4) / 2
	if frag.Confidence != want {
		t.Fatalf("expected averaged confidence %v, got %v", want, frag.Confidence)
	}
}

func TestExtractConfidenceZeroWhenNoSlotsPresent(t *testing.T) {
	e := New(stubProvider{reply: `{}`})
	frag, err := e.Extract(context.Background(), "hello", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.Confidence != 0 {
		t.Fatalf("expected zero confidence with no slots, got %v", frag.Confidence)
	}
}

func TestExtractIdentityRejectsFreeText(t *testing.T) {
	e := New(stubProvider{reply: `{"identity": "I'm a software engineer"}`})
	frag, err := e.Extract(context.Background(), "I'm a software engineer", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.Identity != nil {
		t.Fatalf("expected free-text identity to be rejected, got %+v", frag.Identity)
	}
}

func TestExtractIdentityAcceptsStrictKeyValue(t *testing.T) {
	e := New(stubProvider{reply: `{"identity": "role: software engineer"}`})
	frag, err := e.Extract(context.Background(), "I'm a software engineer", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.Identity == nil || frag.Identity.Value != "role: software engineer" {
		t.Fatalf("expected strict KEY:VALUE identity to be accepted, got %+v", frag.Identity)
	}
}

func TestExtractIdentityRejectsUnknownKey(t *testing.T) {
	e := New(stubProvider{reply: `{"identity": "mood: happy"}`})
	frag, err := e.Extract(context.Background(), "I'm happy", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.Identity != nil {
		t.Fatalf("expected identity with a key outside the closed set to be rejected, got %+v", frag.Identity)
	}
}

func TestExtractDegradesToZeroValueOnLMError(t *testing.T) {
	e := New(stubProvider{err: errors.New("timeout")})
	at := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	frag, err := e.Extract(context.Background(), "anything", at)
	if err != nil {
		t.Fatalf("Extract should not error on LM failure: %v", err)
	}
	if frag.Task != nil || frag.Confidence != 0 || frag.ResolvedDeadline != nil {
		t.Fatalf("expected zero-value fragment on LM error, got %+v", frag)
	}
	if frag.TimeBucket != BucketMorning {
		t.Fatalf("expected TimeBucket still computed from at, got %v", frag.TimeBucket)
	}
}

func TestExtractDegradesToZeroValueOnMalformedJSON(t *testing.T) {
	e := New(stubProvider{reply: "not json at all"})
	frag, err := e.Extract(context.Background(), "anything", time.Now())
	if err != nil {
		t.Fatalf("Extract should not error on malformed JSON: %v", err)
	}
	if frag.Task != nil || frag.Identity != nil || len(frag.LongTerm) != 0 {
		t.Fatalf("expected zero-value fragment on malformed JSON, got %+v", frag)
	}
}

func TestExtractResolvesTomorrowLocally(t *testing.T) {
	e := New(stubProvider{reply: `{"deadline": "tomorrow"}`})
	at := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	frag, err := e.Extract(context.Background(), "let's ship tomorrow", at)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.DeadlineRaw != "tomorrow" {
		t.Fatalf("expected raw deadline phrase kept, got %q", frag.DeadlineRaw)
	}
	if frag.ResolvedDeadline == nil {
		t.Fatalf("expected tomorrow to resolve locally")
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !frag.ResolvedDeadline.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *frag.ResolvedDeadline)
	}
}

func TestExtractResolvesNextWeekdayLocally(t *testing.T) {
	// 2026-07-31 is a Friday.
	e := New(stubProvider{reply: `{"deadline": "next Wednesday"}`})
	at := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	frag, err := e.Extract(context.Background(), "due next Wednesday", at)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.ResolvedDeadline == nil {
		t.Fatalf("expected next Wednesday to resolve locally")
	}
	want := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	if !frag.ResolvedDeadline.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *frag.ResolvedDeadline)
	}
}

func TestExtractLeavesAmbiguousDeadlineUnresolved(t *testing.T) {
	e := New(stubProvider{reply: `{"deadline": "sometime soon"}`})
	frag, err := e.Extract(context.Background(), "I'll get to it sometime soon", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if frag.ResolvedDeadline != nil {
		t.Fatalf("expected an unrecognised phrase to stay unresolved, got %v", *frag.ResolvedDeadline)
	}
	if frag.DeadlineRaw != "sometime soon" {
		t.Fatalf("expected the raw phrase preserved as fallback, got %q", frag.DeadlineRaw)
	}
}

func TestExtractKeepsLongTermMemoriesInClosedCategorySet(t *testing.T) {
	e := New(stubProvider{reply: `{"long_term_memories": [
		{"content": "prefers dark roast", "category": "preference"},
		{"content": "junk", "category": "not_a_real_category"}
	]}`})
	frag, err := e.Extract(context.Background(), "I love dark roast coffee", time.Now())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(frag.LongTerm) != 1 || frag.LongTerm[0].Category != CategoryPreference {
		t.Fatalf("expected only the recognised category to survive, got %+v", frag.LongTerm)
	}
}
