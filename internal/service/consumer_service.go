package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yesahmedyes/lecture-assistant/internal/dto"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/registry"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains trace records off the bus and persists each one
// twice: a JSONL line per session for offline inspection, and a row in the
// session store.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	traceDir  string
	store     registry.Store
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	traceDir string,
	store registry.Store,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		traceDir:  traceDir,
		store:     store,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	if err := os.MkdirAll(cs.traceDir, 0o755); err != nil {
		return fmt.Errorf("failed to create trace dir: %w", err)
	}

	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TraceRecordMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal trace message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads are never retriable
		return
	}

	if err := cs.appendJSONL(payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to append trace file", map[string]interface{}{
			"session_id": payload.SessionId,
			"stage":      payload.Record.Stage,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	if err := cs.store.SaveRecord(ctx, payload.SessionId, payload.Record); err != nil {
		cs.logger.Error("ConsumerService", "Failed to persist trace record", map[string]interface{}{
			"session_id": payload.SessionId,
			"stage":      payload.Record.Stage,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	msg.Ack()
}

func (cs *consumerService) appendJSONL(payload dto.TraceRecordMessage) error {
	path := filepath.Join(cs.traceDir, payload.SessionId.String()+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(payload.Record)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}
