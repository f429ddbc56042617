package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
)

// Status is the lifecycle state of one session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting_for_human"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Params are the immutable session-start parameters.
type Params struct {
	Topic       string
	Model       string
	Temperature float64
	Seed        int
}

// Session is the identity and lifecycle envelope of one pipeline run.
type Session struct {
	ID          uuid.UUID
	Params      Params
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Failure captures the failing stage and error detail of a failed session.
type Failure struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// StatusSnapshot is a consistent view of an engine's lifecycle for status
// queries while the run loop is executing.
type StatusSnapshot struct {
	Status          Status
	CurrentStage    string
	WaitingForHuman bool
	Checkpoint      *Checkpoint
	Failure         *Failure
}

// Engine drives one session's state through the fixed stage sequence on
// its own goroutine, suspending at checkpoint stages until a decision is
// submitted and publishing lifecycle events to the session's broadcaster.
type Engine struct {
	session     *Session
	stages      map[string]Stage
	transitions *Transitions
	trace       *Trace
	broadcaster *broadcast.Broadcaster
	sink        RecordSink // optional
	logger      logger.ILogger

	mu        sync.Mutex
	status    Status
	current   string
	pending   *Checkpoint
	failure   *Failure
	final     *State
	revisions map[CheckpointKind]int

	state      State // owned by the run goroutine
	decisionCh chan Decision
	done       chan struct{}
}

// NewEngine wires an engine for one session. sink may be nil.
func NewEngine(
	session *Session,
	stages []Stage,
	transitions *Transitions,
	trace *Trace,
	broadcaster *broadcast.Broadcaster,
	sink RecordSink,
	log logger.ILogger,
) (*Engine, error) {
	if session == nil || session.Params.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidParameters)
	}
	byName := make(map[string]Stage, len(stages))
	for _, st := range stages {
		byName[st.Name] = st
	}
	return &Engine{
		session:     session,
		stages:      byName,
		transitions: transitions,
		trace:       trace,
		broadcaster: broadcaster,
		sink:        sink,
		logger:      log,
		status:      StatusCreated,
		revisions:   make(map[CheckpointKind]int),
		state:       State{Topic: session.Params.Topic, Seed: session.Params.Seed},
		decisionCh:  make(chan Decision, 1),
		done:        make(chan struct{}),
	}, nil
}

func (e *Engine) Session() *Session {
	return e.session
}

func (e *Engine) Trace() *Trace {
	return e.trace
}

// Done closes when the run loop exits, whether completed, failed or
// cancelled.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Start launches the run loop. The context carries cooperative
// cancellation: a cancelled session finishes its in-flight stage but runs
// no further ones.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	name := e.transitions.First()
	var decision *Decision

	for name != "" {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stage, ok := e.stages[name]
		if !ok {
			e.fail(name, fmt.Errorf("stage %q not registered", name))
			return
		}

		e.setRunning(name)
		e.publish(broadcast.Event{Type: broadcast.EventStageStarted, Stage: name})

		started := time.Now()
		res, err := stage.Run(ctx, e.state.Clone(), decision)
		rec := res.Record
		rec.Stage = name
		rec.StartedAt = started
		rec.CompletedAt = time.Now()
		rec.Decision = decision

		if err != nil {
			rec.Error = err.Error()
			e.append(rec)
			e.fail(name, err)
			return
		}

		e.append(rec)

		if res.Checkpoint != nil {
			e.setWaiting(name, res.Checkpoint)
			e.publish(broadcast.Event{
				Type:            broadcast.EventStageCompleted,
				Stage:           name,
				WaitingForHuman: true,
				CheckpointKind:  string(res.Checkpoint.Kind),
				Checkpoint:      res.Checkpoint,
			})
			select {
			case d := <-e.decisionCh:
				decision = &d
				continue // re-run the satisfied stage with the decision
			case <-ctx.Done():
				return
			}
		}

		e.state = res.State

		cat := DecisionNone
		if decision != nil {
			cat = Categorize(stage.Checkpoint, *decision)
		}
		next, err := e.transitions.Next(name, cat)
		if err != nil {
			e.fail(name, err)
			return
		}
		if next != "" && e.transitions.IsBackward(name, next) {
			e.mu.Lock()
			e.revisions[stage.Checkpoint]++
			count := e.revisions[stage.Checkpoint]
			e.mu.Unlock()
			if count > e.transitions.MaxRevisions() {
				e.fail(name, ErrPipelineStalled)
				return
			}
		}
		decision = nil

		e.publish(broadcast.Event{Type: broadcast.EventStageCompleted, Stage: name})
		name = next
	}

	e.complete()
	e.publish(broadcast.Event{Type: broadcast.EventSessionCompleted})
}

// SubmitDecision resumes a waiting session. It validates lifecycle and
// checkpoint kind under the engine lock and flips the session back to
// running before the run loop appends the next trace entry; on any error
// neither lifecycle nor pipeline state is touched.
func (e *Engine) SubmitDecision(kind CheckpointKind, d Decision) error {
	e.mu.Lock()
	if e.status != StatusWaiting || e.pending == nil {
		e.mu.Unlock()
		return ErrNoPendingCheckpoint
	}
	if e.pending.Kind != kind {
		e.mu.Unlock()
		return fmt.Errorf("%w: pending %s, got %s", ErrCheckpointMismatch, e.pending.Kind, kind)
	}
	if err := e.pending.ValidateDecision(d); err != nil {
		e.mu.Unlock()
		return err
	}
	e.pending = nil
	e.status = StatusRunning
	e.mu.Unlock()

	e.decisionCh <- d
	return nil
}

// Snapshot returns the lifecycle view served by status queries.
func (e *Engine) Snapshot() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusSnapshot{
		Status:          e.status,
		CurrentStage:    e.current,
		WaitingForHuman: e.status == StatusWaiting,
		Checkpoint:      e.pending,
		Failure:         e.failure,
	}
}

// Result returns the final artifact of a completed session.
func (e *Engine) Result() (*Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusCompleted || e.final == nil {
		return nil, ErrNotReady
	}
	return &Artifact{
		Topic:          e.final.Topic,
		Brief:          e.final.Brief,
		FormattedBrief: e.final.FormattedBrief,
		Outline:        e.final.Outline,
		Sources:        e.final.PrioritizedSources,
		Claims:         e.final.Claims,
	}, nil
}

func (e *Engine) append(rec Record) {
	rec = e.trace.Append(rec)
	if e.sink != nil {
		e.sink.Record(e.session.ID, rec)
	}
}

func (e *Engine) publish(ev broadcast.Event) {
	if e.broadcaster == nil {
		return
	}
	ev.SessionID = e.session.ID.String()
	ev.Timestamp = time.Now()
	e.broadcaster.Publish(ev)
}

func (e *Engine) setRunning(stage string) {
	e.mu.Lock()
	e.status = StatusRunning
	e.current = stage
	e.pending = nil
	e.mu.Unlock()
}

func (e *Engine) setWaiting(stage string, cp *Checkpoint) {
	e.mu.Lock()
	e.status = StatusWaiting
	e.current = stage
	e.pending = cp
	e.mu.Unlock()
	e.logger.Info("Engine", "Session waiting for human", map[string]interface{}{
		"session_id": e.session.ID,
		"stage":      stage,
		"checkpoint": string(cp.Kind),
	})
}

func (e *Engine) complete() {
	now := time.Now()
	final := e.state.Clone()
	e.mu.Lock()
	e.status = StatusCompleted
	e.pending = nil
	e.final = &final
	e.session.CompletedAt = &now
	e.mu.Unlock()
	e.logger.Info("Engine", "Session completed", map[string]interface{}{
		"session_id": e.session.ID,
		"stages_run": e.trace.Len(),
	})
}

func (e *Engine) fail(stage string, err error) {
	e.mu.Lock()
	e.status = StatusFailed
	e.pending = nil
	e.failure = &Failure{Stage: stage, Detail: err.Error()}
	e.mu.Unlock()
	e.logger.Error("Engine", "Session failed", map[string]interface{}{
		"session_id": e.session.ID,
		"stage":      stage,
		"error":      err.Error(),
	})
	e.publish(broadcast.Event{Type: broadcast.EventError, Stage: stage, Detail: err.Error()})
}
