package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/dto"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/assistant"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
	"github.com/yesahmedyes/lecture-assistant/pkg/events"
	"github.com/yesahmedyes/lecture-assistant/pkg/llm"
	"github.com/yesahmedyes/lecture-assistant/pkg/nats"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
	"github.com/yesahmedyes/lecture-assistant/pkg/registry"
)

type ISessionService interface {
	Start(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	List(ctx context.Context) ([]*dto.SessionListItem, error)
	Status(ctx context.Context, id uuid.UUID) (*dto.SessionStatusResponse, error)
	Feedback(ctx context.Context, id uuid.UUID, req *dto.SubmitFeedbackRequest) error
	Result(ctx context.Context, id uuid.UUID) (*dto.SessionResultResponse, error)
	Trace(ctx context.Context, id uuid.UUID) (*dto.SessionTraceResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Broadcaster(id uuid.UUID) (*broadcast.Broadcaster, error)
	ActiveSessions() int
}

// ProviderFactory builds an LLM provider for a session-specific model
// override. An empty model name returns the default provider.
type ProviderFactory func(model string) (llm.Provider, error)

type sessionService struct {
	registry         *registry.Registry
	deps             assistant.Dependencies
	newProvider      ProviderFactory
	publisherService IPublisherService
	lifecycle        *nats.Publisher // optional
	logger           logger.ILogger
}

func NewSessionService(
	reg *registry.Registry,
	deps assistant.Dependencies,
	newProvider ProviderFactory,
	publisherService IPublisherService,
	lifecycle *nats.Publisher,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		registry:         reg,
		deps:             deps,
		newProvider:      newProvider,
		publisherService: publisherService,
		lifecycle:        lifecycle,
		logger:           log,
	}
}

func (s *sessionService) Start(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	deps := s.deps
	if req.Model != "" {
		provider, err := s.newProvider(req.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown model %q", pipeline.ErrInvalidParameters, req.Model)
		}
		deps.LLM = provider
	}
	if req.Temperature != nil {
		deps.Temperature = *req.Temperature
	}
	if req.Seed > 0 {
		deps.Seed = req.Seed
	}

	transitions, err := assistant.Transitions()
	if err != nil {
		return nil, err
	}

	session := &pipeline.Session{
		ID: uuid.New(),
		Params: pipeline.Params{
			Topic:       req.Topic,
			Model:       req.Model,
			Temperature: deps.Temperature,
			Seed:        deps.Seed,
		},
		CreatedAt: time.Now(),
	}

	broadcaster := broadcast.New()
	trace := pipeline.NewTrace(session.ID)
	engine, err := pipeline.NewEngine(
		session,
		assistant.Stages(deps),
		transitions,
		trace,
		broadcaster,
		s.publisherService,
		s.logger,
	)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &registry.Entry{
		Session:     session,
		Engine:      engine,
		Broadcaster: broadcaster,
	}
	if err := s.registry.Add(ctx, entry, cancel); err != nil {
		cancel()
		return nil, err
	}

	engine.Start(runCtx)
	go s.watch(engine, session.ID)
	s.publishLifecycle(ctx, events.SessionStarted(session.ID, req.Topic))

	s.logger.Info("SessionService", "Session started", map[string]interface{}{
		"session_id": session.ID,
		"topic":      req.Topic,
	})

	return &dto.StartSessionResponse{
		Id:     session.ID,
		Topic:  req.Topic,
		Status: string(pipeline.StatusRunning),
	}, nil
}

// watch persists the terminal lifecycle once the run loop exits and
// mirrors it onto the event bus.
func (s *sessionService) watch(engine *pipeline.Engine, id uuid.UUID) {
	<-engine.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.registry.PersistStatus(ctx, id)

	snap := engine.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
		s.publishLifecycle(ctx, events.SessionCompleted(id))
	case pipeline.StatusFailed:
		stage, detail := "", ""
		if snap.Failure != nil {
			stage, detail = snap.Failure.Stage, snap.Failure.Detail
		}
		s.publishLifecycle(ctx, events.SessionFailed(id, stage, detail))
	}
}

func (s *sessionService) List(ctx context.Context) ([]*dto.SessionListItem, error) {
	entries := s.registry.List()
	result := make([]*dto.SessionListItem, 0, len(entries))
	for _, entry := range entries {
		snap := entry.Engine.Snapshot()
		result = append(result, &dto.SessionListItem{
			Id:          entry.Session.ID,
			Topic:       entry.Session.Params.Topic,
			Status:      string(snap.Status),
			CreatedAt:   entry.Session.CreatedAt,
			CompletedAt: entry.Session.CompletedAt,
		})
	}
	return result, nil
}

func (s *sessionService) Status(ctx context.Context, id uuid.UUID) (*dto.SessionStatusResponse, error) {
	entry, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	snap := entry.Engine.Snapshot()
	res := &dto.SessionStatusResponse{
		Id:              entry.Session.ID,
		Topic:           entry.Session.Params.Topic,
		Status:          string(snap.Status),
		CurrentStage:    snap.CurrentStage,
		WaitingForHuman: snap.WaitingForHuman,
		Checkpoint:      snap.Checkpoint,
		CreatedAt:       entry.Session.CreatedAt,
		CompletedAt:     entry.Session.CompletedAt,
	}
	if snap.Failure != nil {
		res.FailedStage = snap.Failure.Stage
		res.FailureDetail = snap.Failure.Detail
	}
	return res, nil
}

func (s *sessionService) Feedback(ctx context.Context, id uuid.UUID, req *dto.SubmitFeedbackRequest) error {
	entry, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	kind := pipeline.CheckpointKind(req.CheckpointKind)
	if !pipeline.KnownCheckpointKind(kind) {
		return fmt.Errorf("%w: unknown checkpoint kind %q", pipeline.ErrInvalidParameters, req.CheckpointKind)
	}

	if err := entry.Engine.SubmitDecision(kind, pipeline.Decision{
		Choice: req.Decision,
		Input:  req.Input,
	}); err != nil {
		return err
	}

	s.registry.PersistStatus(ctx, id)
	return nil
}

func (s *sessionService) Result(ctx context.Context, id uuid.UUID) (*dto.SessionResultResponse, error) {
	entry, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	artifact, err := entry.Engine.Result()
	if err != nil {
		return nil, err
	}
	return &dto.SessionResultResponse{Id: id, Artifact: *artifact}, nil
}

func (s *sessionService) Trace(ctx context.Context, id uuid.UUID) (*dto.SessionTraceResponse, error) {
	entry, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	trace := entry.Engine.Trace()
	return &dto.SessionTraceResponse{
		Id:        id,
		NodeTrace: trace.NodeTrace(),
		Records:   trace.Records(),
	}, nil
}

func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}
	s.publishLifecycle(ctx, events.SessionDeleted(id))
	return nil
}

func (s *sessionService) Broadcaster(id uuid.UUID) (*broadcast.Broadcaster, error) {
	entry, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return entry.Broadcaster, nil
}

func (s *sessionService) ActiveSessions() int {
	return s.registry.Len()
}

func (s *sessionService) publishLifecycle(ctx context.Context, event events.Event) {
	if s.lifecycle == nil {
		return
	}
	if err := s.lifecycle.Publish(ctx, event); err != nil {
		s.logger.Warn("SessionService", "Failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
