// Package persona implements the Persona Builder (C12): it aggregates a
// behavior pattern, an emotion state, active plans, upcoming reminders, and
// explicit memory cards into a single bounded Markdown block for LLM
// system-prompt injection, weighted by the caller's Disposition (§4.12).
// Fragments are not among its inputs.
package persona

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Disposition mirrors the teacher's trait model (Skepticism/Literalism/
// Empathy, each 1-5) and controls the tone of the rendered persona block —
// traits only affect formatting, never which facts are recalled.
type Disposition struct {
	Skepticism int
	Literalism int
	Empathy    int
}

// DefaultDisposition returns balanced traits.
func DefaultDisposition() Disposition {
	return Disposition{Skepticism: 3, Literalism: 3, Empathy: 3}
}

// BehaviorPattern summarizes a user's inferred routine (the 5W1H-style
// who/what/when/where/why/how rollup).
type BehaviorPattern struct {
	InferredRole    string
	RoutineOverview string
}

// EmotionState is the current inferred mood.
type EmotionState struct {
	Mood       string
	Confidence float64
}

// PlanSummary is one active plan offered to the renderer.
type PlanSummary struct {
	Goal     string
	Deadline *time.Time
	Blockers []string
}

// Reminder is one upcoming reminder offered to the renderer.
type Reminder struct {
	Text string
	Due  *time.Time
}

// MemoryCard is one explicit memory bullet offered to the renderer.
// Visibility "private" is excluded from persona injection (§9 decision).
type MemoryCard struct {
	Content    string
	Visibility string
}

// Input is everything the renderer draws on for one user (§4.12).
type Input struct {
	Behavior      BehaviorPattern
	Emotion       EmotionState
	ActivePlans   []PlanSummary
	Reminders     []Reminder
	ExplicitCards []MemoryCard
}

const (
	maxPlans     = 2
	maxReminders = 2
	maxCards     = 3
)

// Builder renders an Input into a bounded Markdown block.
type Builder struct {
	Disposition Disposition
	Counter     *TokenCounter
}

func New(disp Disposition, counter *TokenCounter) *Builder {
	if counter == nil {
		counter = NewTokenCounter("gpt-4")
	}
	return &Builder{Disposition: disp, Counter: counter}
}

// Build renders the bounded Markdown persona block, truncated to maxTokens
// via the token-count oracle (§4.12 — never by simple character slicing).
func (b *Builder) Build(input Input, maxTokens int) string {
	var sb strings.Builder

	if input.Behavior.InferredRole != "" {
		fmt.Fprintf(&sb, "## Role\n%s\n\n", input.Behavior.InferredRole)
	}
	if input.Behavior.RoutineOverview != "" {
		fmt.Fprintf(&sb, "## Routine\n%s\n\n", input.Behavior.RoutineOverview)
	}
	if input.Emotion.Mood != "" {
		fmt.Fprintf(&sb, "## Mood\n%s\n\n", toneWrap(b.Disposition, input.Emotion))
	}

	if plans := limitPlans(input.ActivePlans, maxPlans); len(plans) > 0 {
		sb.WriteString("## Active Plans\n")
		for _, p := range plans {
			line := "- " + p.Goal
			if p.Deadline != nil {
				line += fmt.Sprintf(" (due %s)", p.Deadline.Format("2006-01-02"))
			}
			if len(p.Blockers) > 0 {
				line += "; blocked by: " + strings.Join(p.Blockers, ", ")
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	if reminders := limitReminders(input.Reminders, maxReminders); len(reminders) > 0 {
		sb.WriteString("## Upcoming Reminders\n")
		for _, r := range reminders {
			line := "- " + r.Text
			if r.Due != nil {
				line += fmt.Sprintf(" (%s)", r.Due.Format("2006-01-02"))
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	if cards := visibleCards(input.ExplicitCards, maxCards); len(cards) > 0 {
		sb.WriteString("## Known About You\n")
		for _, c := range cards {
			sb.WriteString("- " + c.Content + "\n")
		}
	}

	return b.Counter.TruncateToBudget(strings.TrimRight(sb.String(), "\n"), maxTokens)
}

// toneWrap prefixes the mood line with a disposition-driven hedge, grounded
// on the teacher's dispositionDesc-style intensity mapping.
func toneWrap(d Disposition, e EmotionState) string {
	if d.Skepticism >= 4 && e.Confidence < 0.6 {
		return "possibly " + e.Mood + " (low confidence signal)"
	}
	if d.Empathy >= 4 {
		return e.Mood + " — worth acknowledging"
	}
	return e.Mood
}

func limitPlans(plans []PlanSummary, n int) []PlanSummary {
	if len(plans) > n {
		return plans[:n]
	}
	return plans
}

func limitReminders(reminders []Reminder, n int) []Reminder {
	sorted := make([]Reminder, len(reminders))
	copy(sorted, reminders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Due == nil {
			return false
		}
		if sorted[j].Due == nil {
			return true
		}
		return sorted[i].Due.Before(*sorted[j].Due)
	})
	if len(sorted) > n {
		return sorted[:n]
	}
	return sorted
}

// visibleCards excludes visibility=private cards before applying the cap
// (§9 Open Question decision: private memories never enter the persona).
func visibleCards(cards []MemoryCard, n int) []MemoryCard {
	var out []MemoryCard
	for _, c := range cards {
		if c.Visibility == "private" {
			continue
		}
		out = append(out, c)
		if len(out) >= n {
			break
		}
	}
	return out
}
