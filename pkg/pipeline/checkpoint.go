package pipeline

import "fmt"

// CheckpointKind is the closed set of human checkpoints in the pipeline.
// Decision validation switches over this set exhaustively; adding a kind
// without extending the switches below is a compile-away bug caught by the
// default branches in tests.
type CheckpointKind string

const (
	CheckpointPlanReview    CheckpointKind = "plan_review"
	CheckpointClaimsReview  CheckpointKind = "claims_review"
	CheckpointOutlineReview CheckpointKind = "outline_review"
	CheckpointToneReview    CheckpointKind = "tone_review"
)

// KnownCheckpointKind reports whether k names a checkpoint the pipeline has.
func KnownCheckpointKind(k CheckpointKind) bool {
	switch k {
	case CheckpointPlanReview, CheckpointClaimsReview, CheckpointOutlineReview, CheckpointToneReview:
		return true
	}
	return false
}

// Option is one selectable choice presented to the human.
type Option struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	RequiresInput bool   `json:"requires_input,omitempty"`
}

// Preview carries kind-specific data the human needs to decide. Only the
// fields for the payload's kind are populated.
type Preview struct {
	PlanSummary    string              `json:"plan_summary,omitempty"`
	Queries        []string            `json:"queries,omitempty"`
	Claims         []Claim             `json:"claims,omitempty"`
	CitationMap    map[string]Citation `json:"citation_map,omitempty"`
	OutlineExcerpt string              `json:"outline_preview,omitempty"`
}

// Checkpoint is the payload a checkpoint stage produces when it suspends
// the pipeline. It is consumed exactly once by the resume path.
type Checkpoint struct {
	Kind    CheckpointKind `json:"kind"`
	Summary string         `json:"summary"`
	Options []Option       `json:"options"`
	Preview Preview        `json:"preview"`
}

// Decision is the human answer to a pending checkpoint. Choice is one of
// the payload's option ids; Input carries free text for options that
// require it.
type Decision struct {
	Choice string `json:"choice"`
	Input  string `json:"input,omitempty"`
}

// ValidateDecision rejects a decision that does not fit the pending
// payload before any session state is mutated.
func (c *Checkpoint) ValidateDecision(d Decision) error {
	for _, opt := range c.Options {
		if opt.ID != d.Choice {
			continue
		}
		if opt.RequiresInput && d.Input == "" {
			return fmt.Errorf("%w: option %q requires input text", ErrInvalidParameters, opt.ID)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown option %q for checkpoint %s", ErrInvalidParameters, d.Choice, c.Kind)
}

// DecisionCategory buckets a decision for the transition table.
type DecisionCategory int

const (
	DecisionNone DecisionCategory = iota
	DecisionApprove
	DecisionRevise
	DecisionFlag
	DecisionSkip
	DecisionAdjust
)

// Categorize maps a validated decision onto a transition category. The
// switch is exhaustive over CheckpointKind.
func Categorize(kind CheckpointKind, d Decision) DecisionCategory {
	switch kind {
	case CheckpointPlanReview:
		if d.Choice == "revise" {
			return DecisionRevise
		}
		return DecisionApprove
	case CheckpointClaimsReview:
		if d.Choice == "flag" {
			return DecisionFlag
		}
		return DecisionApprove
	case CheckpointOutlineReview:
		if d.Choice == "revise" {
			return DecisionRevise
		}
		return DecisionApprove
	case CheckpointToneReview:
		if d.Choice == "adjust" {
			return DecisionAdjust
		}
		return DecisionSkip
	}
	return DecisionNone
}
