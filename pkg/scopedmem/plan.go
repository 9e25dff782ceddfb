package scopedmem

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/liliang-cn/agentmem/pkg/memerr"
)

// Step is one normalized plan step (§4.7). Append-once: passes transitions
// only false->true; action/capability/purpose/order are immutable after save.
type Step struct {
	Index      int        `json:"index"`
	Action     string     `json:"action"`
	Capability string     `json:"capability"`
	Purpose    string     `json:"purpose"`
	SkillHint  string     `json:"skill_hint"`
	Passes     bool       `json:"passes"`
	VerifiedAt *time.Time `json:"verified_at"`
	Result     string     `json:"result"`
}

// SessionSummary is one append-once roll-up of progress across a session (§4.7).
type SessionSummary struct {
	SessionNumber  int       `json:"session_number"`
	CompletedSteps []int     `json:"completed_steps"`
	NextStepHint   string    `json:"next_step_hint"`
	At             time.Time `json:"at"`
}

// PlanDocument is one task's plan, persisted to plans/{task_id}.json (§3, §6).
type PlanDocument struct {
	TaskID          string           `json:"task_id"`
	Goal            string           `json:"goal"`
	UserQuery       string           `json:"user_query"`
	Steps           []Step           `json:"steps"`
	SessionSummaries []SessionSummary `json:"session_summaries"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	CompletionRate  float64          `json:"completion_rate"`
}

// Plan is the per-user plan store: one JSON file per task_id.
type Plan struct {
	mu        sync.Mutex
	userRoot  string
	files     map[string]*jsonFile
}

func NewPlan(userRoot string) *Plan {
	return &Plan{userRoot: userRoot, files: map[string]*jsonFile{}}
}

func (p *Plan) fileFor(taskID string) *jsonFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[taskID]; ok {
		return f
	}
	f := newJSONFile(filepath.Join(p.userRoot, "plans", taskID+".json"))
	p.files[taskID] = f
	return f
}

// StepInput is the caller-supplied shape for one step before normalization.
type StepInput struct {
	Action     string
	Capability string
	Purpose    string
	SkillHint  string
}

// SavePlan creates the plan document, normalizing steps to the append-once
// shape (§4.7).
func (p *Plan) SavePlan(taskID, goal string, steps []StepInput, userQuery string, metadata map[string]any) (PlanDocument, error) {
	normalized := make([]Step, len(steps))
	for i, s := range steps {
		normalized[i] = Step{
			Index:      i,
			Action:     s.Action,
			Capability: s.Capability,
			Purpose:    s.Purpose,
			SkillHint:  s.SkillHint,
			Passes:     false,
		}
	}
	doc := PlanDocument{
		TaskID:    taskID,
		Goal:      goal,
		UserQuery: userQuery,
		Steps:     normalized,
		Metadata:  metadata,
	}
	if err := p.fileFor(taskID).save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (p *Plan) Get(taskID string) (PlanDocument, error) {
	var doc PlanDocument
	if err := p.fileFor(taskID).load(&doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// UpdateStepStatus may only flip passes false->true; it never rewrites
// action (Testable Property 5: Plan step monotonicity).
func (p *Plan) UpdateStepStatus(taskID string, stepIndex int, passes bool, result string) (PlanDocument, error) {
	doc, err := p.Get(taskID)
	if err != nil {
		return doc, err
	}
	if stepIndex < 0 || stepIndex >= len(doc.Steps) {
		return doc, memerr.Wrap("UpdateStepStatus", fmt.Errorf("step index %d out of range", stepIndex))
	}

	step := &doc.Steps[stepIndex]
	if !passes {
		// true -> false is forbidden; false -> false is a no-op.
		if step.Passes {
			return doc, memerr.Wrap("UpdateStepStatus", fmt.Errorf("cannot flip passes true->false for step %d", stepIndex))
		}
	} else if !step.Passes {
		step.Passes = true
		now := time.Now()
		step.VerifiedAt = &now
	}
	if result != "" {
		step.Result = result
	}

	doc.CompletionRate = completionRate(doc.Steps)
	if err := p.fileFor(taskID).save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func completionRate(steps []Step) float64 {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Passes {
			done++
		}
	}
	return float64(done) / float64(len(steps))
}

// AddSessionSummary appends one summary and bumps the monotonic session number.
func (p *Plan) AddSessionSummary(taskID string, completedSteps []int, nextStepHint string) (PlanDocument, error) {
	doc, err := p.Get(taskID)
	if err != nil {
		return doc, err
	}
	next := 1
	if len(doc.SessionSummaries) > 0 {
		next = doc.SessionSummaries[len(doc.SessionSummaries)-1].SessionNumber + 1
	}
	doc.SessionSummaries = append(doc.SessionSummaries, SessionSummary{
		SessionNumber:  next,
		CompletedSteps: completedSteps,
		NextStepHint:   nextStepHint,
		At:             time.Now(),
	})
	if err := p.fileFor(taskID).save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// GetSessionSummary renders a Markdown block listing steps with [x]/[ ],
// the current completion ratio, and the last next_hint — the text injected
// into the next session's system prompt (§4.7).
func (p *Plan) GetSessionSummary(taskID string) (string, error) {
	doc, err := p.Get(taskID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", doc.Goal)
	done := 0
	for _, s := range doc.Steps {
		mark := "[ ]"
		if s.Passes {
			mark = "[x]"
			done++
		}
		fmt.Fprintf(&b, "%s step%d: %s\n", mark, s.Index, s.Action)
	}
	fmt.Fprintf(&b, "completion %d/%d\n", done, len(doc.Steps))
	if n := len(doc.SessionSummaries); n > 0 {
		fmt.Fprintf(&b, "next: %s\n", doc.SessionSummaries[n-1].NextStepHint)
	}
	return b.String(), nil
}
