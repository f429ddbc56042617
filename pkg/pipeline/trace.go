package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModelMetadata records which model produced a stage's output, for the
// prompt/model columns of the trace.
type ModelMetadata struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Seed        int     `json:"seed,omitempty"`
}

// Record is one entry of a session's execution trace. Immutable once
// appended; a stage re-entered after a checkpoint appends a new record.
type Record struct {
	Sequence    int             `json:"sequence"`
	Stage       string          `json:"stage"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Inputs      json.RawMessage `json:"inputs,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Model       *ModelMetadata  `json:"model,omitempty"`
	Decision    *Decision       `json:"decision,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Snapshot marshals v for the Inputs/Outputs columns. Marshal failures
// degrade to null rather than failing the stage.
func Snapshot(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// RecordSink receives every appended record, e.g. for durable storage.
// Implementations must not block the engine.
type RecordSink interface {
	Record(sessionID uuid.UUID, rec Record)
}

// Trace is the append-only execution log of one session. Only the owning
// engine appends; the internal lock exists so status and trace queries can
// read a consistent snapshot while a stage is in flight.
type Trace struct {
	mu        sync.RWMutex
	sessionID uuid.UUID
	records   []Record
}

func NewTrace(sessionID uuid.UUID) *Trace {
	return &Trace{sessionID: sessionID}
}

func (t *Trace) SessionID() uuid.UUID {
	return t.sessionID
}

// Append stamps the next sequence number and stores the record.
func (t *Trace) Append(rec Record) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.Sequence = len(t.records) + 1
	t.records = append(t.records, rec)
	return rec
}

// Records returns a copy of the trace in append order.
func (t *Trace) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Record(nil), t.records...)
}

// NodeTrace returns the ordered stage names, one per record.
func (t *Trace) NodeTrace() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, len(t.records))
	for i, rec := range t.records {
		names[i] = rec.Stage
	}
	return names
}

func (t *Trace) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
