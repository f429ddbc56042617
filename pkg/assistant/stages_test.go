package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
	"github.com/yesahmedyes/lecture-assistant/pkg/llm"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
	"github.com/yesahmedyes/lecture-assistant/pkg/research"
)

// scriptedProvider replays canned completions in call order.
type scriptedProvider struct {
	responses []string
	calls     int
	prompts   []string
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if p.calls >= len(p.responses) {
		return "out of script", nil
	}
	res := p.responses[p.calls]
	p.calls++
	return res, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.Generate(ctx, history[len(history)-1].Content, options...)
}

func (p *scriptedProvider) Metadata() llm.Metadata {
	return llm.Metadata{Provider: "scripted", Model: "test-model"}
}

type stubSearcher struct {
	sources []pipeline.Source
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]pipeline.Source, error) {
	out := make([]pipeline.Source, len(s.sources))
	copy(out, s.sources)
	for i := range out {
		out[i].URL += "?q=" + url.QueryEscape(query)
	}
	return out, nil
}

const claimsJSON = `{
  "claims": [
    {"id": 1, "text": "Claim one", "citations": ["S1"]},
    {"id": 2, "text": "Claim two", "citations": ["S1"]}
  ],
  "citation_map": {"S1": {"title": "Page", "url": "https://page.example"}}
}`

func testDeps(t *testing.T, provider llm.Provider) Dependencies {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>Page text about the topic.</p></body></html>"))
	}))
	t.Cleanup(srv.Close)

	return Dependencies{
		LLM:         provider,
		Searcher:    &stubSearcher{sources: []pipeline.Source{{Title: "Page", URL: srv.URL}}},
		Extractor:   research.NewExtractor(),
		Logger:      logger.NewNopLogger(),
		Temperature: 0.2,
		Seed:        7,
	}
}

func startEngine(t *testing.T, deps Dependencies, topic string) *pipeline.Engine {
	t.Helper()
	transitions, err := Transitions()
	require.NoError(t, err)

	session := &pipeline.Session{
		ID:        uuid.New(),
		Params:    pipeline.Params{Topic: topic, Seed: deps.Seed},
		CreatedAt: time.Now(),
	}
	engine, err := pipeline.NewEngine(
		session,
		Stages(deps),
		transitions,
		pipeline.NewTrace(session.ID),
		broadcast.New(),
		nil,
		logger.NewNopLogger(),
	)
	require.NoError(t, err)
	engine.Start(context.Background())
	return engine
}

func waitForCheckpoint(t *testing.T, engine *pipeline.Engine, kind pipeline.CheckpointKind) *pipeline.Checkpoint {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap := engine.Snapshot()
		if snap.Status == pipeline.StatusFailed {
			t.Fatalf("session failed at %s: %+v", snap.CurrentStage, snap.Failure)
		}
		if snap.WaitingForHuman && snap.Checkpoint != nil && snap.Checkpoint.Kind == kind {
			return snap.Checkpoint
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for checkpoint %s", kind)
	return nil
}

func TestPipelineHappyPath(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"- golang scheduler internals\n- goroutine preemption",    // search_plan
		"Research plan: cover the scheduler, preemption, and GC.", // plan_draft
		claimsJSON, // claims_extract
		"## Outline\n1. Scheduler\n2. Preemption",             // synthesize
		"The final brief text with citations (Reference S1).", // generate_brief
		"# Go Runtime Brief\n\nThe final brief text.",         // format
	}}
	engine := startEngine(t, testDeps(t, provider), "go runtime")

	cp := waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	assert.NotEmpty(t, cp.Preview.PlanSummary)
	assert.Equal(t, []string{"golang scheduler internals", "goroutine preemption"}, cp.Preview.Queries)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointPlanReview, pipeline.Decision{Choice: "approve"}))

	cp = waitForCheckpoint(t, engine, pipeline.CheckpointClaimsReview)
	require.Len(t, cp.Preview.Claims, 2)
	assert.Equal(t, "Claim one", cp.Preview.Claims[0].Text)
	assert.Contains(t, cp.Preview.CitationMap, "S1")
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointClaimsReview, pipeline.Decision{Choice: "approve"}))

	cp = waitForCheckpoint(t, engine, pipeline.CheckpointOutlineReview)
	assert.Contains(t, cp.Preview.OutlineExcerpt, "Scheduler")
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointOutlineReview, pipeline.Decision{Choice: "approve"}))

	<-engine.Done()
	artifact, err := engine.Result()
	require.NoError(t, err)

	assert.Equal(t, "go runtime", artifact.Topic)
	assert.Contains(t, artifact.Brief, "final brief")
	assert.Contains(t, artifact.FormattedBrief, "# Go Runtime Brief")
	require.Len(t, artifact.Claims, 2)
	require.NotEmpty(t, artifact.Sources)
	assert.NotEmpty(t, artifact.Sources[0].Content, "extraction should have attached page text")

	// The all-approve path runs exactly six completions and never
	// reaches the tone checkpoint.
	assert.Equal(t, 6, provider.calls)
	assert.NotContains(t, engine.Trace().NodeTrace(), StageToneReview)
}

func TestPipelinePlanRevisionReplansQueries(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"- first query",   // search_plan, first pass
		"First plan.",     // plan_draft, first pass
		"- revised query", // search_plan after revision
		"Revised plan.",   // plan_draft after revision
		claimsJSON,
		"Outline.",
		"Brief.",
		"# Brief",
	}}
	engine := startEngine(t, testDeps(t, provider), "topic")

	waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointPlanReview, pipeline.Decision{
		Choice: "revise",
		Input:  "focus on performance",
	}))

	cp := waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	assert.Equal(t, "Revised plan.", cp.Preview.PlanSummary)
	assert.Equal(t, []string{"revised query"}, cp.Preview.Queries)

	// The revision constraint is threaded into the replanned prompt.
	assert.Contains(t, provider.prompts[2], "focus on performance")
}

func TestPipelineToneAdjustmentOnRevisePath(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"- q",
		"Plan.",
		claimsJSON,
		"Outline before tone.",
		"Outline refined.",    // refine
		"Outline after tone.", // tone_apply
		"Brief.",
		"# Brief",
	}}
	engine := startEngine(t, testDeps(t, provider), "topic")

	waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointPlanReview, pipeline.Decision{Choice: "approve"}))
	waitForCheckpoint(t, engine, pipeline.CheckpointClaimsReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointClaimsReview, pipeline.Decision{Choice: "approve"}))
	waitForCheckpoint(t, engine, pipeline.CheckpointOutlineReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointOutlineReview, pipeline.Decision{
		Choice: "revise",
		Input:  "tighten section two",
	}))
	waitForCheckpoint(t, engine, pipeline.CheckpointToneReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointToneReview, pipeline.Decision{
		Choice: "adjust",
		Input:  "casual tone",
	}))

	<-engine.Done()
	artifact, err := engine.Result()
	require.NoError(t, err)
	assert.Equal(t, "Outline after tone.", artifact.Outline)
	assert.Equal(t, 8, provider.calls)
}

func TestPipelineClaimsFlagContinuesForward(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"- q",
		"Plan.",
		claimsJSON,
		"Outline.",
		"Brief.",
		"# Brief",
	}}
	engine := startEngine(t, testDeps(t, provider), "topic")

	waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointPlanReview, pipeline.Decision{Choice: "approve"}))
	waitForCheckpoint(t, engine, pipeline.CheckpointClaimsReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointClaimsReview, pipeline.Decision{
		Choice: "flag",
		Input:  "claim two looks stale",
	}))

	// Flagging does not loop back; the pipeline proceeds to the outline.
	waitForCheckpoint(t, engine, pipeline.CheckpointOutlineReview)

	// The flag note reaches the synthesis prompt.
	assert.Contains(t, provider.prompts[3], "claim two looks stale")
}

func TestPipelineMalformedClaimsJSONFallsBack(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"- q",
		"Plan.",
		"this is not json at all", // claims_extract
		"Outline.",
		"Brief.",
		"# Brief",
	}}
	engine := startEngine(t, testDeps(t, provider), "topic")

	waitForCheckpoint(t, engine, pipeline.CheckpointPlanReview)
	require.NoError(t, engine.SubmitDecision(pipeline.CheckpointPlanReview, pipeline.Decision{Choice: "approve"}))

	cp := waitForCheckpoint(t, engine, pipeline.CheckpointClaimsReview)
	require.Len(t, cp.Preview.Claims, 1)
	assert.Equal(t, "this is not json at all", cp.Preview.Claims[0].Text)
}

func TestTransitionRouting(t *testing.T) {
	tr, err := Transitions()
	require.NoError(t, err)

	next, err := tr.Next(StageOutlineReview, pipeline.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, StageBrief, next, "outline approval goes straight to brief generation")

	next, err = tr.Next(StageOutlineReview, pipeline.DecisionRevise)
	require.NoError(t, err)
	assert.Equal(t, StageRefine, next)

	next, err = tr.Next(StageToneReview, pipeline.DecisionSkip)
	require.NoError(t, err)
	assert.Equal(t, StageBrief, next)

	next, err = tr.Next(StagePlanReview, pipeline.DecisionRevise)
	require.NoError(t, err)
	assert.Equal(t, StageSearchPlan, next)
}

func TestStageOrderMatchesRegisteredStages(t *testing.T) {
	stages := Stages(Dependencies{})
	require.Len(t, stages, len(StageOrder))
	for i, stage := range stages {
		assert.Equal(t, StageOrder[i], stage.Name)
	}
}

func TestInputStageRejectsBlankTopic(t *testing.T) {
	deps := Dependencies{}
	_, err := deps.inputStage(context.Background(), pipeline.State{Topic: "   "}, nil)
	require.ErrorIs(t, err, pipeline.ErrInvalidParameters)
}
