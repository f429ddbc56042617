package pipeline

import (
	"testing"
)

func testTransitions(t *testing.T) *Transitions {
	t.Helper()
	order := []string{"draft", "review", "refine", "tone", "publish"}
	branches := map[string]map[DecisionCategory]string{
		"review": {
			DecisionApprove: "tone",
			DecisionRevise:  "draft",
		},
		"tone": {
			DecisionSkip: "publish",
		},
	}
	tr, err := NewTransitions(order, branches, 2)
	if err != nil {
		t.Fatalf("NewTransitions: %v", err)
	}
	return tr
}

func TestTransitionsNext(t *testing.T) {
	tr := testTransitions(t)

	tests := []struct {
		name    string
		current string
		cat     DecisionCategory
		want    string
	}{
		{name: "linear successor", current: "draft", cat: DecisionNone, want: "review"},
		{name: "approve branch", current: "review", cat: DecisionApprove, want: "tone"},
		{name: "revise goes backward", current: "review", cat: DecisionRevise, want: "draft"},
		{name: "unbranched decision falls through", current: "review", cat: DecisionFlag, want: "refine"},
		{name: "skip branch", current: "tone", cat: DecisionSkip, want: "publish"},
		{name: "terminal stage", current: "publish", cat: DecisionNone, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Next(tt.current, tt.cat)
			if err != nil {
				t.Fatalf("Next(%q, %v): %v", tt.current, tt.cat, err)
			}
			if got != tt.want {
				t.Errorf("Next(%q, %v) = %q, want %q", tt.current, tt.cat, got, tt.want)
			}
		})
	}
}

func TestTransitionsNextUnknownStage(t *testing.T) {
	tr := testTransitions(t)
	if _, err := tr.Next("missing", DecisionNone); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestTransitionsIsBackward(t *testing.T) {
	tr := testTransitions(t)

	if !tr.IsBackward("review", "draft") {
		t.Error("review -> draft should be backward")
	}
	if tr.IsBackward("draft", "review") {
		t.Error("draft -> review should not be backward")
	}
	if tr.IsBackward("draft", "draft") {
		t.Error("self transition should not be backward")
	}
}

func TestNewTransitionsValidation(t *testing.T) {
	if _, err := NewTransitions(nil, nil, 2); err == nil {
		t.Error("expected error for empty order")
	}
	if _, err := NewTransitions([]string{"a", "a"}, nil, 2); err == nil {
		t.Error("expected error for duplicate stage")
	}
	branches := map[string]map[DecisionCategory]string{
		"a": {DecisionApprove: "missing"},
	}
	if _, err := NewTransitions([]string{"a", "b"}, branches, 2); err == nil {
		t.Error("expected error for branch target not in order")
	}
	branches = map[string]map[DecisionCategory]string{
		"missing": {DecisionApprove: "a"},
	}
	if _, err := NewTransitions([]string{"a", "b"}, branches, 2); err == nil {
		t.Error("expected error for branch source not in order")
	}
}
