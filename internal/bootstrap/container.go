package bootstrap

import (
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"

	"github.com/yesahmedyes/lecture-assistant/internal/config"
	"github.com/yesahmedyes/lecture-assistant/internal/controller"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/internal/service"
	"github.com/yesahmedyes/lecture-assistant/pkg/assistant"
	"github.com/yesahmedyes/lecture-assistant/pkg/llm"
	"github.com/yesahmedyes/lecture-assistant/pkg/llm/factory"
	pktNats "github.com/yesahmedyes/lecture-assistant/pkg/nats"
	"github.com/yesahmedyes/lecture-assistant/pkg/registry"
	"github.com/yesahmedyes/lecture-assistant/pkg/research"
	"github.com/yesahmedyes/lecture-assistant/pkg/search"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Shared facades
	SessionService service.ISessionService
	Registry       *registry.Registry
	Logger         logger.ILogger
	Keys           config.APIKeys
}

// NewContainer wires every dependency. db may be nil, in which case the
// session store is in-memory only.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM provider
	llmProvider, err := factory.NewProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	newProvider := func(model string) (llm.Provider, error) {
		return factory.NewProvider(cfg.Ai.LLMProvider, model, cfg.Ai.OllamaBaseURL, cfg.Keys.OpenAI)
	}

	// 4. Session store
	var store registry.Store
	if db != nil {
		gormStore, err := registry.NewGormStore(db)
		if err != nil {
			log.Fatalf("[FATAL] Failed to migrate session store: %v", err)
		}
		store = gormStore
		log.Println("[INFO] Using postgres session store")
	} else {
		store = registry.NewMemoryStore()
		log.Println("[INFO] Using in-memory session store")
	}

	// 5. NATS lifecycle mirror (optional)
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			audit := service.NewLifecycleAuditService(natsSub, "lecture-assistant-audit", sysLogger)
			if err := audit.Start(); err != nil {
				log.Printf("[WARN] Failed to start lifecycle audit consumer: %v", err)
				audit.Close()
			}
		}
	}

	// 6. Trace pipeline
	publisherService := service.NewPublisherService(cfg.App.TraceTopic, pubSub, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.TraceTopic,
		cfg.App.TraceDir,
		store,
		sysLogger,
	)

	// 7. Domain
	reg := registry.New(store, sysLogger)
	deps := assistant.Dependencies{
		LLM:         llmProvider,
		Searcher:    search.NewTavilyClient(cfg.Keys.Tavily),
		Extractor:   research.NewExtractor(),
		Logger:      sysLogger,
		Temperature: cfg.Ai.Temperature,
		Seed:        cfg.Ai.Seed,
	}

	sessionService := service.NewSessionService(
		reg,
		deps,
		newProvider,
		publisherService,
		natsPub,
		sysLogger,
	)

	return &Container{
		SessionController: controller.NewSessionController(sessionService, sysLogger),
		ConsumerService:   consumerService,
		SessionService:    sessionService,
		Registry:          reg,
		Logger:            sysLogger,
		Keys:              cfg.Keys,
	}
}
