package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// SessionRecord is the durable projection of a session's lifecycle.
type SessionRecord struct {
	ID          uuid.UUID
	Topic       string
	Status      pipeline.Status
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Store persists sessions and their execution records. The in-memory
// implementation backs tests; the gorm implementation backs production
// deployments that need durability beyond process lifetime.
type Store interface {
	SaveSession(ctx context.Context, rec SessionRecord) error
	SaveRecord(ctx context.Context, sessionID uuid.UUID, rec pipeline.Record) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
}
