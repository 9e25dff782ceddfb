package scopedmem

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func newTestPlanStore(t *testing.T) *Plan {
	t.Helper()
	root := fmt.Sprintf("/tmp/test_scopedmem_%d", time.Now().UnixNano())
	t.Cleanup(func() { os.RemoveAll(root) })
	return NewPlan(root)
}

func TestPlanResumeE6(t *testing.T) {
	p := newTestPlanStore(t)
	steps := []StepInput{{Action: "step0"}, {Action: "step1"}, {Action: "step2"}}
	if _, err := p.SavePlan("task1", "ship the feature", steps, "do it", nil); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	if _, err := p.UpdateStepStatus("task1", 0, true, "done"); err != nil {
		t.Fatalf("UpdateStepStatus: %v", err)
	}

	summary, err := p.GetSessionSummary("task1")
	if err != nil {
		t.Fatalf("GetSessionSummary: %v", err)
	}
	if !contains(summary, "[x] step0") || !contains(summary, "[ ] step1") || !contains(summary, "[ ] step2") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
	if !contains(summary, "completion 1/3") {
		t.Fatalf("expected completion 1/3 in summary:\n%s", summary)
	}
}

func TestPlanStepMonotonicity(t *testing.T) {
	p := newTestPlanStore(t)
	p.SavePlan("task1", "goal", []StepInput{{Action: "a"}}, "", nil)
	p.UpdateStepStatus("task1", 0, true, "")

	if _, err := p.UpdateStepStatus("task1", 0, false, ""); err == nil {
		t.Fatalf("expected error flipping passes true->false")
	}

	doc, err := p.Get("task1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Steps[0].Action != "a" {
		t.Fatalf("action must remain immutable")
	}
	if !doc.Steps[0].Passes {
		t.Fatalf("passes must remain true")
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
