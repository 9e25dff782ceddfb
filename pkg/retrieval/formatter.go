// Package retrieval implements the Retrieval Formatter and the optional
// Reranker stage (C11): rendering a ranked memory list into a bilingual
// prompt section, and reordering candidates via an external relevance
// scorer before formatting (§4.11).
package retrieval

import (
	"fmt"
	"strings"
	"time"
)

// Lang selects the formatter's bilingual rendering (§4.11 "zh"/"en").
type Lang string

const (
	LangEnglish Lang = "en"
	LangChinese Lang = "zh"
)

// Entry is one candidate memory handed to the formatter.
type Entry struct {
	Memory    string
	Score     float64
	CreatedAt time.Time
}

// FormatOptions controls the formatter's filtering/rendering (§4.11).
type FormatOptions struct {
	Lang          Lang
	MinScore      float64
	MaxMemories   int
	SuffixDetails bool // append relevance + date to each line
}

// Format renders entries into a bilingual prompt section: it skips empty
// memory text, drops entries below MinScore, and caps the result at
// MaxMemories (§4.11).
func Format(entries []Entry, opts FormatOptions) string {
	lang := opts.Lang
	if lang == "" {
		lang = LangEnglish
	}

	header := "Relevant memories:"
	empty := "No relevant memories found."
	if lang == LangChinese {
		header = "相关记忆："
		empty = "未找到相关记忆。"
	}

	var lines []string
	for _, e := range entries {
		if strings.TrimSpace(e.Memory) == "" {
			continue
		}
		if e.Score < opts.MinScore {
			continue
		}
		line := "- " + e.Memory
		if opts.SuffixDetails {
			line += suffixFor(lang, e)
		}
		lines = append(lines, line)
		if opts.MaxMemories > 0 && len(lines) >= opts.MaxMemories {
			break
		}
	}

	if len(lines) == 0 {
		return empty
	}
	return header + "\n" + strings.Join(lines, "\n")
}

func suffixFor(lang Lang, e Entry) string {
	date := e.CreatedAt.Format("2006-01-02")
	if lang == LangChinese {
		return fmt.Sprintf(" （相关度 %.2f，%s）", e.Score, date)
	}
	return fmt.Sprintf(" (relevance %.2f, %s)", e.Score, date)
}
