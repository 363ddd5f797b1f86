package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
	chatrepo "github.com/mindfold/mindfold-backend/internal/data/repos/chat"
	"github.com/mindfold/mindfold-backend/internal/db"
	httpx "github.com/mindfold/mindfold-backend/internal/http"
	httpH "github.com/mindfold/mindfold-backend/internal/http/handlers"
	httpMW "github.com/mindfold/mindfold-backend/internal/http/middleware"
	"github.com/mindfold/mindfold-backend/internal/modules/ingestion"
	"github.com/mindfold/mindfold-backend/internal/modules/retrieval"
	"github.com/mindfold/mindfold-backend/internal/pkg/cache"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/neo4jdb"
	"github.com/mindfold/mindfold-backend/internal/platform/openai"
	"github.com/mindfold/mindfold-backend/internal/platform/redisdb"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	DB     *gorm.DB
	Graph  *graph.Store
	Server *httpx.Server

	queue *ingestion.Queue
	neo   *neo4jdb.Client
	redis *redisdb.Client
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init neo4j: %w", err)
	}
	store := graph.NewStore(neo, log, cfg.ProposedThreshold)
	store.EnsureSchema(context.Background())

	// Redis is optional; without it telemetry publishing is a no-op.
	redis, err := redisdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Redis unavailable, telemetry disabled", "error", err)
		redis = nil
	}

	llm, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init model client: %w", err)
	}
	router := openai.NewModelRouter(log, llm)

	qvecs := cache.NewTTL[[]float32](cfg.SemanticCacheTTL, 512)
	ctxCache := cache.NewTTL[services.GraphRAGContext](cfg.ContextCacheTTL, 256)

	telemetry := services.NewTelemetryService(redis, log)
	engine := retrieval.NewEngine(store, llm, log, telemetry, qvecs)
	planner := retrieval.NewPlanner(engine, store, llm, log)
	retrievalSvc := services.NewRetrievalService(planner, engine, ctxCache, log)

	extractor := ingestion.NewExtractor(router, log)
	pipeline := ingestion.NewPipeline(store, extractor, llm, log, cfg.IngestConcurrency)
	queue := ingestion.NewQueue(pipeline, log, cfg.IngestQueueSize, 1)
	ingestionSvc := services.NewIngestionService(pipeline, queue, store, log)

	reviewSvc := services.NewReviewService(store, log)
	graphSvc := services.NewGraphSpaceService(store, log)

	sessions := chatrepo.NewSessionRepo(theDB, log)
	messages := chatrepo.NewMessageRepo(theDB, log)
	usage := chatrepo.NewUsageRepo(theDB, log)
	notes := chatrepo.NewNotesRepo(theDB, log)
	voice := chatrepo.NewVoiceRepo(theDB, log)

	chatSvc := services.NewChatService(theDB, sessions, messages, usage, retrievalSvc, router, log, int64(cfg.ChatDailyLimit))
	notesSvc := services.NewNotesService(notes, messages, sessions, router, log)
	voiceSvc := services.NewVoiceService(voice, log)
	quoteSvc := services.NewQuoteService(store, log)

	server := httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		RequestTimeout: cfg.RequestTimeout,

		RetrieveHandler: httpH.NewRetrieveHandler(retrievalSvc, graphSvc),
		IngestHandler:   httpH.NewIngestHandler(ingestionSvc, graphSvc),
		ReviewHandler:   httpH.NewReviewHandler(reviewSvc, graphSvc),
		GraphHandler:    httpH.NewGraphHandler(graphSvc),
		ChatHandler:     httpH.NewChatHandler(chatSvc, notesSvc, voiceSvc, graphSvc),
		QuoteHandler:    httpH.NewQuoteHandler(quoteSvc, graphSvc),
		HealthHandler:   httpH.NewHealthHandler(store, theDB),
	})

	return &App{
		Log:    log,
		Cfg:    cfg,
		DB:     theDB,
		Graph:  store,
		Server: server,
		queue:  queue,
		neo:    neo,
		redis:  redis,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Server.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.neo != nil {
		_ = a.neo.Close(context.Background())
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
