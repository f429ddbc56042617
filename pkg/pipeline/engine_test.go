package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
)

// testStages builds a minimal three stage pipeline with one checkpoint in
// the middle: draft -> review (plan_review) -> publish.
func testStages() ([]Stage, *Transitions, error) {
	draft := Stage{
		Name: "draft",
		Run: func(_ context.Context, st State, _ *Decision) (StageResult, error) {
			st.PlanSummary = "plan for " + st.Topic
			return StageResult{State: st}, nil
		},
	}
	review := Stage{
		Name:       "review",
		Checkpoint: CheckpointPlanReview,
		Run: func(_ context.Context, st State, decision *Decision) (StageResult, error) {
			if decision == nil {
				return StageResult{
					State: st,
					Checkpoint: &Checkpoint{
						Kind:    CheckpointPlanReview,
						Summary: "review the plan",
						Options: []Option{
							{ID: "approve", Label: "Approve"},
							{ID: "revise", Label: "Revise", RequiresInput: true},
						},
						Preview: Preview{PlanSummary: st.PlanSummary},
					},
				}, nil
			}
			if decision.Choice == "revise" {
				st.PlanFeedback = decision.Input
			}
			return StageResult{State: st}, nil
		},
	}
	publish := Stage{
		Name: "publish",
		Run: func(_ context.Context, st State, _ *Decision) (StageResult, error) {
			st.Brief = "brief for " + st.Topic
			st.FormattedBrief = "# " + st.Topic
			return StageResult{State: st}, nil
		},
	}

	transitions, err := NewTransitions(
		[]string{"draft", "review", "publish"},
		map[string]map[DecisionCategory]string{
			"review": {DecisionRevise: "draft"},
		},
		2,
	)
	return []Stage{draft, review, publish}, transitions, err
}

func newTestEngine(t *testing.T, topic string) *Engine {
	t.Helper()
	stages, transitions, err := testStages()
	require.NoError(t, err)

	session := &Session{
		ID:        uuid.New(),
		Params:    Params{Topic: topic},
		CreatedAt: time.Now(),
	}
	engine, err := NewEngine(
		session,
		stages,
		transitions,
		NewTrace(session.ID),
		broadcast.New(),
		nil,
		logger.NewNopLogger(),
	)
	require.NoError(t, err)
	return engine
}

func waitForStatus(t *testing.T, e *Engine, want Status) StatusSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := e.Snapshot()
		if snap.Status == want {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, last was %s", want, e.Snapshot().Status)
	return StatusSnapshot{}
}

func TestNewEngineRejectsEmptyTopic(t *testing.T) {
	_, err := NewEngine(
		&Session{ID: uuid.New()},
		nil, nil, nil, nil, nil,
		logger.NewNopLogger(),
	)
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestEngineApprovePath(t *testing.T) {
	engine := newTestEngine(t, "graph databases")
	engine.Start(context.Background())

	snap := waitForStatus(t, engine, StatusWaiting)
	require.True(t, snap.WaitingForHuman)
	require.NotNil(t, snap.Checkpoint)
	assert.Equal(t, CheckpointPlanReview, snap.Checkpoint.Kind)
	assert.Len(t, snap.Checkpoint.Options, 2)

	require.NoError(t, engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "approve"}))

	waitForStatus(t, engine, StatusCompleted)
	<-engine.Done()

	artifact, err := engine.Result()
	require.NoError(t, err)
	assert.Equal(t, "graph databases", artifact.Topic)
	assert.NotEmpty(t, artifact.Brief)
	assert.NotEmpty(t, artifact.FormattedBrief)
	require.NotNil(t, engine.Session().CompletedAt)
}

func TestEngineResultBeforeCompletion(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())
	waitForStatus(t, engine, StatusWaiting)

	_, err := engine.Result()
	require.ErrorIs(t, err, ErrNotReady)
}

func TestEngineSubmitWithoutPendingCheckpoint(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())
	waitForStatus(t, engine, StatusWaiting)

	require.NoError(t, engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "approve"}))
	waitForStatus(t, engine, StatusCompleted)
	traceLen := engine.Trace().Len()

	err := engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "approve"})
	require.ErrorIs(t, err, ErrNoPendingCheckpoint)
	assert.Equal(t, traceLen, engine.Trace().Len(), "rejected submit must not grow the trace")
	assert.Equal(t, StatusCompleted, engine.Snapshot().Status)
}

func TestEngineCheckpointMismatch(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())
	waitForStatus(t, engine, StatusWaiting)

	err := engine.SubmitDecision(CheckpointToneReview, Decision{Choice: "skip"})
	require.ErrorIs(t, err, ErrCheckpointMismatch)

	snap := engine.Snapshot()
	assert.Equal(t, StatusWaiting, snap.Status)
	assert.NotNil(t, snap.Checkpoint, "pending checkpoint must survive a mismatched submit")
}

func TestEngineInvalidDecision(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())
	waitForStatus(t, engine, StatusWaiting)

	err := engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "bogus"})
	require.ErrorIs(t, err, ErrInvalidParameters)

	err = engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "revise"})
	require.ErrorIs(t, err, ErrInvalidParameters, "revise without input must be rejected")

	assert.Equal(t, StatusWaiting, engine.Snapshot().Status)
}

func TestEngineStallsAfterRepeatedRevisions(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())

	for i := 0; i < 3; i++ {
		waitForStatus(t, engine, StatusWaiting)
		require.NoError(t, engine.SubmitDecision(CheckpointPlanReview, Decision{
			Choice: "revise",
			Input:  fmt.Sprintf("attempt %d", i+1),
		}))
	}

	snap := waitForStatus(t, engine, StatusFailed)
	require.NotNil(t, snap.Failure)
	assert.Contains(t, snap.Failure.Detail, ErrPipelineStalled.Error())

	_, err := engine.Result()
	require.ErrorIs(t, err, ErrNotReady)
}

func TestEngineStageErrorFailsSession(t *testing.T) {
	boom := errors.New("searcher unavailable")
	stages := []Stage{
		{
			Name: "draft",
			Run: func(_ context.Context, st State, _ *Decision) (StageResult, error) {
				return StageResult{}, &StageError{Stage: "draft", Err: boom}
			},
		},
	}
	transitions, err := NewTransitions([]string{"draft"}, nil, 2)
	require.NoError(t, err)

	session := &Session{ID: uuid.New(), Params: Params{Topic: "topic"}, CreatedAt: time.Now()}
	engine, err := NewEngine(session, stages, transitions, NewTrace(session.ID), broadcast.New(), nil, logger.NewNopLogger())
	require.NoError(t, err)

	engine.Start(context.Background())
	snap := waitForStatus(t, engine, StatusFailed)

	require.NotNil(t, snap.Failure)
	assert.Equal(t, "draft", snap.Failure.Stage)
	assert.Contains(t, snap.Failure.Detail, "searcher unavailable")

	records := engine.Trace().Records()
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].Error)
}

func TestEngineTraceOrder(t *testing.T) {
	engine := newTestEngine(t, "topic")
	engine.Start(context.Background())

	waitForStatus(t, engine, StatusWaiting)
	require.NoError(t, engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "revise", Input: "shorter"}))

	waitForStatus(t, engine, StatusWaiting)
	require.NoError(t, engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "approve"}))

	waitForStatus(t, engine, StatusCompleted)

	var stages []string
	for i, rec := range engine.Trace().Records() {
		require.Equal(t, i+1, rec.Sequence, "sequence must be gapless")
		stages = append(stages, rec.Stage)
	}
	// First pass suspends at review, the revision re-enters draft, the
	// decision run of review appears again before publish.
	assert.Equal(t, []string{"draft", "review", "review", "draft", "review", "review", "publish"}, stages)

	// The decision is recorded on the re-run of the checkpoint stage.
	reviews := engine.Trace().NodeTrace("review")
	require.Len(t, reviews, 4)
	assert.Nil(t, reviews[0].Decision)
	require.NotNil(t, reviews[1].Decision)
	assert.Equal(t, "revise", reviews[1].Decision.Choice)
}

func TestEngineCancelStopsPipeline(t *testing.T) {
	engine := newTestEngine(t, "topic")
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)

	waitForStatus(t, engine, StatusWaiting)
	cancel()

	select {
	case <-engine.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not exit after cancellation")
	}
}

func TestEngineConcurrentSessionsAreIsolated(t *testing.T) {
	const n = 8

	engines := make([]*Engine, n)
	for i := range engines {
		engines[i] = newTestEngine(t, fmt.Sprintf("topic-%d", i))
		engines[i].Start(context.Background())
	}

	var wg sync.WaitGroup
	for i, engine := range engines {
		wg.Add(1)
		go func(i int, engine *Engine) {
			defer wg.Done()
			waitForStatus(t, engine, StatusWaiting)
			if err := engine.SubmitDecision(CheckpointPlanReview, Decision{Choice: "approve"}); err != nil {
				t.Errorf("engine %d: %v", i, err)
				return
			}
			waitForStatus(t, engine, StatusCompleted)
		}(i, engine)
	}
	wg.Wait()

	for i, engine := range engines {
		artifact, err := engine.Result()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("topic-%d", i), artifact.Topic)
		assert.Equal(t, "brief for "+artifact.Topic, artifact.Brief)
	}
}
