package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatSkipsEmptyAndLowScore(t *testing.T) {
	entries := []Entry{
		{Memory: "", Score: 0.9},
		{Memory: "likes coffee", Score: 0.1},
		{Memory: "works remotely", Score: 0.8},
	}
	out := Format(entries, FormatOptions{Lang: LangEnglish, MinScore: 0.5})
	if strings.Contains(out, "likes coffee") {
		t.Fatalf("expected low-score entry dropped, got %q", out)
	}
	if !strings.Contains(out, "works remotely") {
		t.Fatalf("expected qualifying entry present, got %q", out)
	}
}

func TestFormatCapsAtMaxMemories(t *testing.T) {
	entries := []Entry{
		{Memory: "a", Score: 1},
		{Memory: "b", Score: 1},
		{Memory: "c", Score: 1},
	}
	out := Format(entries, FormatOptions{MaxMemories: 2})
	if strings.Count(out, "\n- ") != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
}

func TestFormatEmptyResult(t *testing.T) {
	out := Format(nil, FormatOptions{Lang: LangChinese})
	if out != "未找到相关记忆。" {
		t.Fatalf("unexpected empty-result rendering: %q", out)
	}
}

func TestRerankDropsLowScores(t *testing.T) {
	candidates := []Entry{{Memory: "a"}, {Memory: "b"}, {Memory: "c"}}
	fn := func(_ context.Context, _ string, cs []Entry) ([]RerankedEntry, error) {
		return []RerankedEntry{
			{Entry: cs[0], Score: 8},
			{Entry: cs[1], Score: 3},
			{Entry: cs[2], Score: 9},
		}, nil
	}
	out := Rerank(context.Background(), fn, "q", candidates, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(out))
	}
	if out[0].Memory != "c" || out[1].Memory != "a" {
		t.Fatalf("expected descending score order c,a got %+v", out)
	}
}

func TestRerankFallsBackOnError(t *testing.T) {
	candidates := []Entry{{Memory: "a"}, {Memory: "b"}, {Memory: "c"}}
	fn := func(_ context.Context, _ string, _ []Entry) ([]RerankedEntry, error) {
		return nil, errors.New("model unavailable")
	}
	out := Rerank(context.Background(), fn, "q", candidates, 2)
	if len(out) != 2 || out[0].Memory != "a" || out[1].Memory != "b" {
		t.Fatalf("expected first-2 unchanged fallback, got %+v", out)
	}
}

func TestRerankNilFnFallsBack(t *testing.T) {
	candidates := []Entry{{Memory: "a"}, {Memory: "b"}}
	out := Rerank(context.Background(), nil, "q", candidates, 1)
	if len(out) != 1 || out[0].Memory != "a" {
		t.Fatalf("expected fallback truncation, got %+v", out)
	}
}

func TestFormatSuffixDetails(t *testing.T) {
	out := Format([]Entry{{Memory: "x", Score: 0.9, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}},
		FormatOptions{SuffixDetails: true})
	if !strings.Contains(out, "2026-01-02") {
		t.Fatalf("expected date suffix, got %q", out)
	}
}
