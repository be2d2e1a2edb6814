package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-refinery-be/internal/config"
	"ai-refinery-be/internal/constant"
	"ai-refinery-be/internal/facade"
	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/internal/repository/contract"
	"ai-refinery-be/internal/repository/implementation"
	"ai-refinery-be/internal/repository/memory"
	"ai-refinery-be/internal/service"
	"ai-refinery-be/internal/session"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/database"
	"ai-refinery-be/pkg/embedding"
	"ai-refinery-be/pkg/embedding/jina"
	"ai-refinery-be/pkg/events"
	"ai-refinery-be/pkg/llm/factory"
	"ai-refinery-be/pkg/prompt"
	"ai-refinery-be/pkg/similarity"

	pktNats "ai-refinery-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Ops surface
	Facade *facade.Facade

	// Background Services (Exposed for main.go to run)
	PersisterService service.IPersisterService
	MonitorService   service.IMonitorService

	// Session lifecycle (main.go owns the sweeper)
	SessionStore *session.Store

	RefinementService service.IRefinementService

	eventPublisher  *pktNats.Publisher
	eventSubscriber *pktNats.Subscriber
	rdb             *redis.Client
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	// Initialize Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Keys.OpenAI, "")
		log.Printf("[INFO] Using Embedding Provider: OPENAI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		factory.ProviderKeys{
			OpenAI:      cfg.Keys.OpenAI,
			Anthropic:   cfg.Keys.Anthropic,
			HuggingFace: cfg.Keys.HuggingFace,
		},
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3.5 Infrastructure
	// NATS carries the ops subjects, so the daemon cannot run without it.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to NATS: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Snapshot store: Postgres when a DSN is configured, otherwise Redis,
	// falling back to process memory when neither is reachable.
	var snapshotRepo contract.SnapshotRepository
	var rdb *redis.Client
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Unable to connect to GORM DB: %v", err)
		}
		snapshotRepo = implementation.NewGormSnapshotRepository(db)
		log.Printf("[INFO] Using Snapshot Store: POSTGRES")
	} else {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Snapshots stay in memory", err)
			rdb = nil
			snapshotRepo = memory.NewSnapshotRepository()
			log.Printf("[INFO] Using Snapshot Store: MEMORY")
		} else {
			snapshotRepo = implementation.NewRedisSnapshotRepository(rdb)
			log.Printf("[INFO] Using Snapshot Store: REDIS")
		}
	}

	// Pending operation registry is in-memory only; nonces never leave
	// the process.
	pendingRepo := memory.NewPendingOperationRepository()

	// 4. Session Store
	sessionStore := session.NewStore(session.Config{
		TTL:           time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Session.SweepIntervalMinutes) * time.Minute,
		MaxSessions:   cfg.Session.MaxSessions,
	}, snapshotRepo, sysLogger)
	sessionStore.OnExpired(func(sessionID string, idleFor time.Duration) {
		if err := natsPub.Publish(context.Background(), events.NewSessionExpired(sessionID, idleFor)); err != nil {
			log.Printf("[WARN] Failed to publish session.expired event: %v", err)
		}
	})

	// 5. Refinement Domain
	templates := prompt.NewStore(prompt.TemplateSet{
		InitialSystem:  constant.RefineInitialSystemPromptV1,
		CritiqueSystem: constant.RefineCritiqueSystemPromptV1,
		RevisionSystem: constant.RefineRevisionSystemPromptV1,
		CritiqueUser:   constant.RefineCritiqueUserPromptV1,
		RevisionUser:   constant.RefineRevisionUserPromptV1,
	})

	registry := companion.DefaultRegistry()
	registry.Retune(companion.KindGeneric, cfg.Refine.MaxLoops, cfg.Refine.SimilarityThreshold)

	oracle := similarity.NewOracle(embeddingProvider)

	phaseGenerator := service.NewPhaseGenerator(
		templates,
		registry,
		llmProvider,
		cfg.Ai.LLMLoggingEnabled,
	)

	publisherService := service.NewPublisherService(cfg.App.SnapshotTopic, pubSub)
	persisterService := service.NewPersisterService(
		pubSub,
		cfg.App.SnapshotTopic,
		snapshotRepo,
	)

	refinementService := service.NewRefinementService(
		sessionStore,
		pendingRepo,
		registry,
		phaseGenerator,
		oracle,
		publisherService,
		natsPub,
		cfg.Ai.LLMModel,
		cfg.Refine.Temperature,
	)

	// 6. Event Monitor (Worker)
	var monitorService service.IMonitorService
	if natsSub != nil {
		monitorLogger := logger.NewIsolatedLogger("logs/events.log")
		monitorService = service.NewMonitorService(natsSub, monitorLogger)
	}

	// 7. Ops Facade
	opsFacade := facade.NewFacade(natsPub.Conn(), refinementService, sysLogger)

	return &Container{
		Facade:            opsFacade,
		PersisterService:  persisterService,
		MonitorService:    monitorService,
		SessionStore:      sessionStore,
		RefinementService: refinementService,

		eventPublisher:  natsPub,
		eventSubscriber: natsSub,
		rdb:             rdb,
	}
}

// Shutdown releases infrastructure connections. The session store goes
// first so its final sweep can still publish expiry events.
func (c *Container) Shutdown() {
	c.SessionStore.Shutdown()
	if c.eventSubscriber != nil {
		c.eventSubscriber.Close()
	}
	if c.eventPublisher != nil {
		c.eventPublisher.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis client: %v", err)
		}
	}
}
