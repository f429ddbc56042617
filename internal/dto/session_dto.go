package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

type StartSessionRequest struct {
	Topic       string   `json:"topic" validate:"required"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	Seed        int      `json:"seed" validate:"gte=0"`
}

type StartSessionResponse struct {
	Id     uuid.UUID `json:"id"`
	Topic  string    `json:"topic"`
	Status string    `json:"status"`
}

type SessionStatusResponse struct {
	Id              uuid.UUID            `json:"id"`
	Topic           string               `json:"topic"`
	Status          string               `json:"status"`
	CurrentStage    string               `json:"current_stage,omitempty"`
	WaitingForHuman bool                 `json:"waiting_for_human"`
	Checkpoint      *pipeline.Checkpoint `json:"checkpoint,omitempty"`
	FailedStage     string               `json:"failed_stage,omitempty"`
	FailureDetail   string               `json:"failure_detail,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
}

type SubmitFeedbackRequest struct {
	CheckpointKind string `json:"checkpoint_kind" validate:"required"`
	Decision       string `json:"decision" validate:"required"`
	Input          string `json:"input"`
}

type SessionListItem struct {
	Id          uuid.UUID  `json:"id"`
	Topic       string     `json:"topic"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type SessionResultResponse struct {
	Id       uuid.UUID         `json:"id"`
	Artifact pipeline.Artifact `json:"artifact"`
}

type SessionTraceResponse struct {
	Id        uuid.UUID         `json:"id"`
	NodeTrace []string          `json:"node_trace"`
	Records   []pipeline.Record `json:"records"`
}
