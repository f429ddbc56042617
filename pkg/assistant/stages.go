package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yesahmedyes/lecture-assistant/pkg/llm"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
	"github.com/yesahmedyes/lecture-assistant/pkg/research"
)

const maxQueries = 5

// Stages builds the full stage sequence with all collaborators closed
// over. The returned slice matches StageOrder.
func Stages(deps Dependencies) []pipeline.Stage {
	return []pipeline.Stage{
		{Name: StageInput, Run: deps.inputStage},
		{Name: StageSearchPlan, Run: deps.searchPlanStage},
		{Name: StagePlanDraft, Run: deps.planDraftStage},
		{Name: StagePlanReview, Checkpoint: pipeline.CheckpointPlanReview, Run: deps.planReviewStage},
		{Name: StageWebSearch, Run: deps.webSearchStage},
		{Name: StageExtract, Run: deps.extractStage},
		{Name: StagePrioritize, Run: deps.prioritizeStage},
		{Name: StageClaimsExtract, Run: deps.claimsExtractStage},
		{Name: StageClaimsReview, Checkpoint: pipeline.CheckpointClaimsReview, Run: deps.claimsReviewStage},
		{Name: StageSynthesize, Run: deps.synthesizeStage},
		{Name: StageOutlineReview, Checkpoint: pipeline.CheckpointOutlineReview, Run: deps.outlineReviewStage},
		{Name: StageRefine, Run: deps.refineStage},
		{Name: StageToneReview, Checkpoint: pipeline.CheckpointToneReview, Run: deps.toneReviewStage},
		{Name: StageToneApply, Run: deps.toneApplyStage},
		{Name: StageBrief, Run: deps.briefStage},
		{Name: StageFormat, Run: deps.formatStage},
	}
}

func (d Dependencies) generate(ctx context.Context, prompt string) (string, error) {
	return d.LLM.Generate(ctx, prompt,
		llm.WithTemperature(d.Temperature),
		llm.WithSeed(d.Seed),
	)
}

func (d Dependencies) modelMeta() *pipeline.ModelMetadata {
	meta := d.LLM.Metadata()
	return &pipeline.ModelMetadata{
		Provider:    meta.Provider,
		Model:       meta.Model,
		Temperature: d.Temperature,
		Seed:        d.Seed,
	}
}

func approved(feedback string) bool {
	f := strings.ToLower(strings.TrimSpace(feedback))
	return f == "" || f == "approve"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// --- Stages ---

func (d Dependencies) inputStage(_ context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	st.Topic = strings.TrimSpace(st.Topic)
	if st.Topic == "" {
		return pipeline.StageResult{}, fmt.Errorf("%w: empty topic", pipeline.ErrInvalidParameters)
	}
	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs: pipeline.Snapshot(map[string]any{"topic": st.Topic, "seed": st.Seed}),
		},
	}, nil
}

func (d Dependencies) searchPlanStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	topic := st.Topic
	if !approved(st.PlanFeedback) {
		topic = fmt.Sprintf("%s (constraints: %s)", topic, st.PlanFeedback)
	}
	prompt := fmt.Sprintf(planQueriesPrompt, topic)

	text, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}

	queries := make([]string, 0, maxQueries)
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-• "))
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxQueries {
			break
		}
	}
	st.SearchQueries = queries

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"topic": st.Topic, "plan_feedback": st.PlanFeedback}),
			Outputs: pipeline.Snapshot(map[string]any{"queries": queries}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) planDraftStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	prompt := fmt.Sprintf(planBriefPrompt, st.Topic, strings.Join(st.SearchQueries, "\n"))

	plan, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.PlanSummary = plan

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"topic": st.Topic, "num_queries": len(st.SearchQueries)}),
			Outputs: pipeline.Snapshot(map[string]any{"plan_len": len(plan), "plan_preview": truncate(plan, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) planReviewStage(_ context.Context, st pipeline.State, decision *pipeline.Decision) (pipeline.StageResult, error) {
	if decision == nil {
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Inputs:  pipeline.Snapshot(map[string]any{"plan_len": len(st.PlanSummary)}),
				Outputs: pipeline.Snapshot(map[string]any{"decision": "waiting"}),
			},
			Checkpoint: &pipeline.Checkpoint{
				Kind:    pipeline.CheckpointPlanReview,
				Summary: "Review the research plan before web research begins.",
				Options: []pipeline.Option{
					{ID: "approve", Label: "Approve and continue"},
					{ID: "revise", Label: "Revise plan", RequiresInput: true},
				},
				Preview: pipeline.Preview{
					PlanSummary: st.PlanSummary,
					Queries:     st.SearchQueries,
				},
			},
		}, nil
	}

	if decision.Choice == "revise" {
		st.PlanFeedback = decision.Input
	} else {
		st.PlanFeedback = "approve"
	}
	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"plan_len": len(st.PlanSummary)}),
			Outputs: pipeline.Snapshot(map[string]any{"decision": decision.Choice}),
		},
	}, nil
}

func (d Dependencies) webSearchStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	results, err := research.Topic(ctx, d.Searcher, st.Topic, st.SearchQueries,
		research.DefaultPerQuery, research.DefaultMaxResults, d.Logger)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.SearchResults = results

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"topic": st.Topic, "queries": st.SearchQueries}),
			Outputs: pipeline.Snapshot(map[string]any{"num_results": len(results)}),
		},
	}, nil
}

func (d Dependencies) extractStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	enriched := d.Extractor.EnrichSources(ctx, st.SearchResults)
	st.ExtractedSources = enriched

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"num_results": len(st.SearchResults)}),
			Outputs: pipeline.Snapshot(map[string]any{"num_enriched": len(enriched)}),
		},
	}, nil
}

func (d Dependencies) prioritizeStage(_ context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	prioritized := research.Prioritize(st.ExtractedSources, research.DefaultTopK)
	st.PrioritizedSources = prioritized

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"num_enriched": len(st.ExtractedSources)}),
			Outputs: pipeline.Snapshot(map[string]any{"num_prioritized": len(prioritized)}),
		},
	}, nil
}

func (d Dependencies) claimsExtractStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	sourcesJSON := pipeline.Snapshot(compactSources(st.PrioritizedSources))
	prompt := fmt.Sprintf(extractClaimsPrompt, st.Topic, string(sourcesJSON))

	raw, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}

	var parsed struct {
		Claims      []pipeline.Claim             `json:"claims"`
		CitationMap map[string]pipeline.Citation `json:"citation_map"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil || len(parsed.Claims) == 0 {
		// Model did not return valid JSON. Keep the raw text as a single
		// unverified claim rather than failing the session.
		parsed.Claims = []pipeline.Claim{{ID: 1, Text: raw}}
		parsed.CitationMap = map[string]pipeline.Citation{}
	}
	st.Claims = parsed.Claims
	st.CitationMap = parsed.CitationMap

	previews := make([]string, 0, 3)
	for _, c := range parsed.Claims {
		previews = append(previews, truncate(c.Text, 200))
		if len(previews) == 3 {
			break
		}
	}

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"num_sources": len(st.PrioritizedSources)}),
			Outputs: pipeline.Snapshot(map[string]any{"num_claims": len(parsed.Claims), "claims_preview": previews}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) claimsReviewStage(_ context.Context, st pipeline.State, decision *pipeline.Decision) (pipeline.StageResult, error) {
	if decision == nil {
		preview := st.Claims
		if len(preview) > 6 {
			preview = preview[:6]
		}
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Inputs:  pipeline.Snapshot(map[string]any{"num_claims": len(st.Claims)}),
				Outputs: pipeline.Snapshot(map[string]any{"decision": "waiting"}),
			},
			Checkpoint: &pipeline.Checkpoint{
				Kind:    pipeline.CheckpointClaimsReview,
				Summary: "Review the extracted claims before the outline is written.",
				Options: []pipeline.Option{
					{ID: "approve", Label: "Approve claims"},
					{ID: "flag", Label: "Flag claims", RequiresInput: true},
				},
				Preview: pipeline.Preview{
					Claims:      preview,
					CitationMap: st.CitationMap,
				},
			},
		}, nil
	}

	if decision.Choice == "flag" {
		st.ClaimsFeedback = decision.Input
	} else {
		st.ClaimsFeedback = "approve"
	}
	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"num_claims": len(st.Claims)}),
			Outputs: pipeline.Snapshot(map[string]any{"decision": decision.Choice}),
		},
	}, nil
}

func (d Dependencies) synthesizeStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	topicHint := st.Topic
	if !approved(st.PlanFeedback) {
		topicHint += " | Constraints: " + st.PlanFeedback
	}
	if !approved(st.ClaimsFeedback) {
		topicHint += " | Verified-claims-notes: " + st.ClaimsFeedback
	}

	sourcesJSON := pipeline.Snapshot(compactSources(st.PrioritizedSources))
	prompt := fmt.Sprintf(synthesizeOutlinePrompt, topicHint, string(sourcesJSON))

	outline, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.Outline = outline

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"topic": st.Topic, "num_sources": len(st.PrioritizedSources)}),
			Outputs: pipeline.Snapshot(map[string]any{"outline_len": len(outline), "outline_preview": truncate(outline, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) outlineReviewStage(_ context.Context, st pipeline.State, decision *pipeline.Decision) (pipeline.StageResult, error) {
	if decision == nil {
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Inputs:  pipeline.Snapshot(map[string]any{"outline_len": len(st.Outline)}),
				Outputs: pipeline.Snapshot(map[string]any{"decision": "waiting"}),
			},
			Checkpoint: &pipeline.Checkpoint{
				Kind:    pipeline.CheckpointOutlineReview,
				Summary: "Review the outline before the brief is written.",
				Options: []pipeline.Option{
					{ID: "approve", Label: "Approve outline"},
					{ID: "revise", Label: "Request revision", RequiresInput: true},
				},
				Preview: pipeline.Preview{
					OutlineExcerpt: truncate(st.Outline, 1200),
				},
			},
		}, nil
	}

	if decision.Choice == "revise" {
		st.OutlineFeedback = decision.Input
	} else {
		st.OutlineFeedback = "approve"
	}
	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"outline_len": len(st.Outline)}),
			Outputs: pipeline.Snapshot(map[string]any{"decision": decision.Choice}),
		},
	}, nil
}

func (d Dependencies) refineStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	if approved(st.OutlineFeedback) {
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Outputs: pipeline.Snapshot(map[string]any{"revised": false}),
			},
		}, nil
	}

	prompt := fmt.Sprintf(refineOutlinePrompt, st.Outline, st.OutlineFeedback)
	revised, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.Outline = revised

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"feedback": truncate(st.OutlineFeedback, 500)}),
			Outputs: pipeline.Snapshot(map[string]any{"revised_len": len(revised), "revised_preview": truncate(revised, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) toneReviewStage(_ context.Context, st pipeline.State, decision *pipeline.Decision) (pipeline.StageResult, error) {
	if decision == nil {
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Inputs:  pipeline.Snapshot(map[string]any{"outline_len": len(st.Outline)}),
				Outputs: pipeline.Snapshot(map[string]any{"decision": "waiting"}),
			},
			Checkpoint: &pipeline.Checkpoint{
				Kind:    pipeline.CheckpointToneReview,
				Summary: "Optionally adjust the tone or focus of the outline.",
				Options: []pipeline.Option{
					{ID: "skip", Label: "Skip tone adjustment"},
					{ID: "adjust", Label: "Adjust tone/focus", RequiresInput: true},
				},
				Preview: pipeline.Preview{
					OutlineExcerpt: truncate(st.Outline, 500),
				},
			},
		}, nil
	}

	if decision.Choice == "adjust" {
		st.TonePrefs = decision.Input
	} else {
		st.TonePrefs = "skip"
	}
	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"outline_len": len(st.Outline)}),
			Outputs: pipeline.Snapshot(map[string]any{"decision": decision.Choice}),
		},
	}, nil
}

func (d Dependencies) toneApplyStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	prefs := strings.TrimSpace(st.TonePrefs)
	if prefs == "" || prefs == "skip" {
		return pipeline.StageResult{
			State: st,
			Record: pipeline.Record{
				Outputs: pipeline.Snapshot(map[string]any{"adjusted": false}),
			},
		}, nil
	}

	prompt := fmt.Sprintf(adjustTonePrompt, st.Outline, prefs)
	revised, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.Outline = revised

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"prefs": truncate(prefs, 200)}),
			Outputs: pipeline.Snapshot(map[string]any{"revised_len": len(revised), "revised_preview": truncate(revised, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) briefStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	prompt := fmt.Sprintf(finalBriefPrompt, st.Topic, st.Outline)

	brief, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.Brief = brief

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"topic": st.Topic}),
			Outputs: pipeline.Snapshot(map[string]any{"brief_len": len(brief), "brief_preview": truncate(brief, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

func (d Dependencies) formatStage(ctx context.Context, st pipeline.State, _ *pipeline.Decision) (pipeline.StageResult, error) {
	prompt := fmt.Sprintf(formatBriefPrompt, st.Brief)

	formatted, err := d.generate(ctx, prompt)
	if err != nil {
		return pipeline.StageResult{}, err
	}
	st.FormattedBrief = formatted

	return pipeline.StageResult{
		State: st,
		Record: pipeline.Record{
			Inputs:  pipeline.Snapshot(map[string]any{"brief_len": len(st.Brief)}),
			Outputs: pipeline.Snapshot(map[string]any{"formatted_len": len(formatted), "formatted_preview": truncate(formatted, 1200)}),
			Prompt:  prompt,
			Model:   d.modelMeta(),
		},
	}, nil
}

// compactSources strips page content down to a preview so prompts stay
// within context limits.
func compactSources(sources []pipeline.Source) []map[string]string {
	out := make([]map[string]string, 0, len(sources))
	for i, s := range sources {
		out = append(out, map[string]string{
			"id":      fmt.Sprintf("S%d", i+1),
			"title":   s.Title,
			"url":     s.URL,
			"content": truncate(s.Content, 1500),
		})
	}
	return out
}

// extractJSONObject trims everything outside the outermost JSON object, so
// fenced or chatty model output still parses.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
