package service

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/dto"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

type IPublisherService interface {
	pipeline.RecordSink
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
	logger    logger.ILogger
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel, log logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		logger:    log,
	}
}

// Record fans a trace record out onto the bus. Publishing is fire and
// forget: the engine must never stall on trace persistence.
func (p *publisherService) Record(sessionID uuid.UUID, rec pipeline.Record) {
	payload, err := json.Marshal(dto.TraceRecordMessage{
		SessionId: sessionID,
		Record:    rec,
	})
	if err != nil {
		p.logger.Error("PublisherService", "Failed to marshal trace record", map[string]interface{}{
			"session_id": sessionID,
			"stage":      rec.Stage,
			"error":      err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		p.logger.Error("PublisherService", "Failed to publish trace record", map[string]interface{}{
			"session_id": sessionID,
			"stage":      rec.Stage,
			"error":      err.Error(),
		})
	}
}
