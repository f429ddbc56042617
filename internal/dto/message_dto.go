package dto

import (
	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// TraceRecordMessage is the bus payload carrying one execution record from
// the engine to the trace consumer.
type TraceRecordMessage struct {
	SessionId uuid.UUID       `json:"session_id"`
	Record    pipeline.Record `json:"record"`
}
