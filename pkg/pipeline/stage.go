package pipeline

import "context"

// StageResult is what one stage invocation produced: the updated state, a
// trace record (stages fill Inputs/Outputs/Prompt/Model; the engine stamps
// identity, sequence and timestamps) and, for checkpoint stages invoked
// without a decision, the payload the human must act on.
type StageResult struct {
	State      State
	Record     Record
	Checkpoint *Checkpoint
}

// RunFunc executes one stage against a private copy of the session state.
// decision is nil on first entry; checkpoint stages re-entered after the
// human answered receive the validated decision and must fold it into the
// returned state.
type RunFunc func(ctx context.Context, st State, decision *Decision) (StageResult, error)

// Stage describes one unit of pipeline work. Stages are stateless; any
// stage-local configuration is closed over at construction time.
type Stage struct {
	Name       string
	Checkpoint CheckpointKind // empty for non-checkpoint stages
	Run        RunFunc
}

// IsCheckpoint reports whether the stage may suspend the pipeline.
func (s Stage) IsCheckpoint() bool {
	return s.Checkpoint != ""
}
