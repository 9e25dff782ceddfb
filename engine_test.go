package agentmem

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/liliang-cn/agentmem/pkg/embedding"
	"github.com/liliang-cn/agentmem/pkg/llmprovider"
)

type stubProvider struct{ reply string }

func (s stubProvider) Name() string { return "stub" }
func (s stubProvider) CreateMessage(ctx context.Context, messages []llmprovider.Message, system string) (llmprovider.Reply, error) {
	return llmprovider.Reply{Content: s.reply}, nil
}

func testEmbedder(dim int) embedding.Provider {
	return embedding.Fn{
		Dim: dim,
		Call: func(ctx context.Context, text string) ([]float32, error) {
			vec := make([]float32, dim)
			if len(text) > 0 {
				vec[int(text[0])%dim] = 1
			}
			return vec, nil
		},
	}
}

func newTestEngine(t *testing.T, reply string) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Dimension = 8
	e, err := newEngine(cfg, testEmbedder(8), stubProvider{reply: reply})
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpenAndClose(t *testing.T) {
	e := newTestEngine(t, `[]`)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if _, err := e.ManagerFor("u1"); err != ErrAlreadyClosed {
		t.Fatalf("expected ErrAlreadyClosed after Close, got %v", err)
	}
}

func TestManagerForCaches(t *testing.T) {
	e := newTestEngine(t, `[]`)
	m1, err := e.ManagerFor("u1")
	if err != nil {
		t.Fatalf("ManagerFor: %v", err)
	}
	m2, err := e.ManagerFor("u1")
	if err != nil {
		t.Fatalf("ManagerFor: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("expected the same Manager instance for the same user_id")
	}
}

func TestIngestAddsExtractedFact(t *testing.T) {
	e := newTestEngine(t, `["likes dark roast coffee"]`)
	res, err := e.Ingest(context.Background(), "u1", "I really like dark roast coffee", time.Now())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].Fact != "likes dark roast coffee" {
		t.Fatalf("expected one added fact, got %+v", res.Added)
	}

	records, err := e.Pool.GetAll(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(records) != 1 || records[0].Text != "likes dark roast coffee" {
		t.Fatalf("expected the fact persisted to the store, got %+v", records)
	}
}

func TestIngestRejectsTooShortFact(t *testing.T) {
	e := newTestEngine(t, `["ok"]`)
	res, err := e.Ingest(context.Background(), "u1", "ok", time.Now())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Added) != 0 {
		t.Fatalf("expected the format pre-filter to drop a too-short fact, got %+v", res.Added)
	}
}

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("", "./data")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.Collection != "memories" || cfg.Dimension != 1536 {
		t.Fatalf("expected default values, got %+v", cfg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	os.Setenv("AGENTMEM_COLLECTION", "custom")
	defer os.Unsetenv("AGENTMEM_COLLECTION")
	cfg, err := LoadConfig("", "./data")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Collection != "custom" {
		t.Fatalf("expected env override to take effect, got %q", cfg.Collection)
	}
}
