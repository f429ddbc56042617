package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters rejects a session-start or decision payload before
	// any engine state is touched.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNoPendingCheckpoint is returned when feedback arrives for a session
	// that is not waiting for a human.
	ErrNoPendingCheckpoint = errors.New("no pending checkpoint")

	// ErrCheckpointMismatch is returned when feedback names a checkpoint kind
	// other than the one currently pending.
	ErrCheckpointMismatch = errors.New("checkpoint kind mismatch")

	// ErrPipelineStalled terminates a session whose revision loop exceeded
	// the configured bound.
	ErrPipelineStalled = errors.New("pipeline stalled: revision bound exceeded")

	// ErrSessionNotFound is returned for lookups against unknown or deleted
	// session identifiers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotReady is returned by result retrieval before the session reached
	// the completed state.
	ErrNotReady = errors.New("session result not ready")
)

// StageError wraps a collaborator failure with the identity of the stage
// that raised it. The engine records it in the trace and fails the session.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
