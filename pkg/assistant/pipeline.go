// Package assistant assembles the fixed lecture-brief pipeline: the stage
// sequence, its checkpoint payloads and the bounded transition table.
package assistant

import (
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/llm"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
	"github.com/yesahmedyes/lecture-assistant/pkg/research"
	"github.com/yesahmedyes/lecture-assistant/pkg/search"
)

// Stage names, in execution order.
const (
	StageInput         = "input"
	StageSearchPlan    = "search_plan"
	StagePlanDraft     = "plan_draft"
	StagePlanReview    = "plan_review"
	StageWebSearch     = "web_search"
	StageExtract       = "extract"
	StagePrioritize    = "prioritize"
	StageClaimsExtract = "claims_extract"
	StageClaimsReview  = "claims_review"
	StageSynthesize    = "synthesize"
	StageOutlineReview = "outline_review"
	StageRefine        = "refine"
	StageToneReview    = "tone_review"
	StageToneApply     = "tone_apply"
	StageBrief         = "generate_brief"
	StageFormat        = "format"
)

// StageOrder is the fixed sequence the engine drives through.
var StageOrder = []string{
	StageInput,
	StageSearchPlan,
	StagePlanDraft,
	StagePlanReview,
	StageWebSearch,
	StageExtract,
	StagePrioritize,
	StageClaimsExtract,
	StageClaimsReview,
	StageSynthesize,
	StageOutlineReview,
	StageRefine,
	StageToneReview,
	StageToneApply,
	StageBrief,
	StageFormat,
}

// MaxRevisions bounds how often a checkpoint decision may send the
// pipeline backwards before the session fails as stalled.
const MaxRevisions = 2

// Transitions builds the decision table: approving the outline jumps
// straight to brief generation, a revision runs refine and then the tone
// checkpoint, and a plan revision loops back to query planning.
func Transitions() (*pipeline.Transitions, error) {
	branches := map[string]map[pipeline.DecisionCategory]string{
		StagePlanReview: {
			pipeline.DecisionRevise: StageSearchPlan,
		},
		StageOutlineReview: {
			pipeline.DecisionApprove: StageBrief,
			pipeline.DecisionRevise:  StageRefine,
		},
		StageToneReview: {
			pipeline.DecisionSkip:   StageBrief,
			pipeline.DecisionAdjust: StageToneApply,
		},
	}
	return pipeline.NewTransitions(StageOrder, branches, MaxRevisions)
}

// Dependencies are the collaborators the stages close over.
type Dependencies struct {
	LLM         llm.Provider
	Searcher    search.Searcher
	Extractor   *research.Extractor
	Logger      logger.ILogger
	Temperature float64
	Seed        int
}
