package service

import (
	"context"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/events"
	pktNats "github.com/yesahmedyes/lecture-assistant/pkg/nats"
)

const lifecycleSubject = "sessions.>"

// ILifecycleAuditService consumes the mirrored session lifecycle events and
// records them in the application log, giving operators a durable audit feed
// independent of the per-session trace files.
type ILifecycleAuditService interface {
	Start() error
	Record(ctx context.Context, event events.Event) error
	Close()
}

type lifecycleAuditService struct {
	subscriber  *pktNats.Subscriber
	durableName string
	logger      logger.ILogger
}

func NewLifecycleAuditService(subscriber *pktNats.Subscriber, durableName string, log logger.ILogger) ILifecycleAuditService {
	return &lifecycleAuditService{
		subscriber:  subscriber,
		durableName: durableName,
		logger:      log,
	}
}

// Start registers the durable consumer on sessions.>.
func (s *lifecycleAuditService) Start() error {
	return s.subscriber.Subscribe(lifecycleSubject, s.durableName, s.Record)
}

func (s *lifecycleAuditService) Record(ctx context.Context, event events.Event) error {
	s.logger.Info("LifecycleAudit", "Session lifecycle event", map[string]interface{}{
		"event_type":  event.EventType(),
		"payload":     event.Payload(),
		"occurred_at": event.Timestamp(),
	})
	return nil
}

func (s *lifecycleAuditService) Close() {
	s.subscriber.Close()
}
