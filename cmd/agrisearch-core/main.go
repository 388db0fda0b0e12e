package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/agrisearch-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/agrisearch-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/agrisearch-core/internal/adapters/driven/chromem"
	"github.com/custodia-labs/agrisearch-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/agrisearch-core/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/agrisearch-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/agrisearch-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/agrisearch-core/internal/adapters/driven/websearch"
	"github.com/custodia-labs/agrisearch-core/internal/adapters/driving/http"
	"github.com/custodia-labs/agrisearch-core/internal/config"
	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
	"github.com/custodia-labs/agrisearch-core/internal/core/services"
	"github.com/custodia-labs/agrisearch-core/internal/metrics"
	"github.com/custodia-labs/agrisearch-core/internal/normalisers"
	"github.com/custodia-labs/agrisearch-core/internal/postprocessors"
	"github.com/custodia-labs/agrisearch-core/internal/runtime"
	"github.com/custodia-labs/agrisearch-core/internal/worker"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	cfg, err := config.NewLoader().
		WithConfigPath(getEnv("AGRISEARCH_CONFIG", "config.yaml")).
		Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := cfg.Logging.Logger(os.Stderr)
	slog.SetDefault(logger)

	log.Printf("agrisearch-core %s starting in %s mode", version, mode)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Metrics =====
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.DefaultNamespace)
	}

	// ===== Vector store =====
	store := openVectorStore(cfg, logger)

	if mode == "ingest" {
		runIngest(ctx, cfg, store, logger)
		return
	}

	// ===== PostgreSQL (optional) =====
	var db *postgres.DB
	if cfg.Database.URL != "" {
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.DefaultConfig(cfg.Database.URL)
		dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
		dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
		dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		db, err = postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("PostgreSQL connected and schema initialized")
	}

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err = redisadapter.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Task Queue (Redis if available, otherwise PostgreSQL) =====
	var taskQueue driven.TaskQueue
	queueBackend := "none"
	switch {
	case redisClient != nil:
		taskQueue, err = redisqueue.NewQueue(ctx, redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			log.Fatalf("Failed to create task queue: %v", err)
		}
		queueBackend = "redis"
	case db != nil:
		taskQueue = postgresqueue.NewQueue(db.DB)
		queueBackend = "postgres"
	}
	log.Printf("Using %s task queue", queueBackend)

	var answerStore driven.AnswerStore
	if db != nil {
		answerStore = postgres.NewAnswerStore(db.DB)
	}

	// ===== Runtime registry =====
	runtimeConfig := domain.NewRuntimeConfig(queueBackend)
	runtimeServices := runtime.NewServices(runtimeConfig)
	defer runtimeServices.Close()

	aiFactory := ai.NewFactory()
	generator := setupGenerators(ctx, cfg, aiFactory, runtimeServices, collector, logger)

	// ===== Web search =====
	normaliserRegistry := normalisers.DefaultRegistry()
	searchProvider, err := websearch.NewProvider(
		domain.WebSearchProviderType(cfg.WebSearch.Provider),
		cfg.WebSearch.APIKey,
		cfg.WebSearch.RatePerSecond,
	)
	if err != nil {
		log.Fatalf("Failed to create web search provider: %v", err)
	}
	runtimeConfig.SetWebSearchAvailable(searchProvider != nil)

	// ===== Retrievers =====
	var cache driven.RetrievalCache
	if redisClient != nil {
		cache = metrics.InstrumentCache(redisadapter.NewRetrievalCache(redisClient), collector, "retrieval")
	}

	var dbRetriever, webRetriever driven.Retriever
	if store != nil {
		runtimeConfig.SetVectorStoreAvailable(store.Count() > 0)
		dbRetriever = wrapRetriever(services.NewVectorStoreRetriever(store), cache, cfg.Redis.CacheTTL, collector, logger)
	}
	if searchProvider != nil {
		opts := []services.WebSearchRetrieverOption{
			services.WithContentPipeline(postprocessors.WebContentPipeline(cfg.WebSearch.MaxContentChars)),
			services.WithMaxContentChars(cfg.WebSearch.MaxContentChars),
			services.WithRetrieverLogger(logger),
		}
		if cfg.WebSearch.FetchPages {
			fetcher := websearch.NewPageFetcher(normaliserRegistry, &nethttp.Client{Timeout: cfg.Pipeline.WebTimeout})
			opts = append(opts, services.WithPageFetcher(fetcher))
		}
		webRetriever = wrapRetriever(services.NewWebSearchRetriever(searchProvider, opts...), cache, cfg.Redis.CacheTTL, collector, logger)
	}

	log.Printf("Runtime config: queue_backend=%s, generator=%t, vector_store=%t, web_search=%t",
		runtimeConfig.QueueBackend,
		runtimeConfig.GeneratorAvailable(),
		runtimeConfig.VectorStoreAvailable(),
		runtimeConfig.WebSearchAvailable())

	// ===== Services (core business logic) =====
	synthesizer := services.NewAnswerSynthesizer(generator, services.SynthesizerConfig{
		Model:         cfg.LLM.Model,
		FallbackModel: cfg.LLM.FallbackModel,
		Temperature:   services.DefaultSynthesizerConfig().Temperature,
		NumCtx:        cfg.LLM.NumCtx,
		Timeout:       cfg.LLM.Timeout,
	}, logger)

	orchestratorConfig := services.OrchestratorConfig{
		Budget:   cfg.Pipeline.Budget,
		Defaults: cfg.Pipeline.AnswerDefaults(),
	}
	if collector != nil {
		orchestratorConfig.Observer = collector.ObserveStage
	}
	answerService := services.NewRAGOrchestrator(
		services.NewQueryRefiner(generator, cfg.LLM.RefinerModel, logger),
		services.NewSubQueryGenerator(generator, cfg.LLM.RefinerModel, logger),
		services.NewEvidenceAggregator(dbRetriever, webRetriever, services.AggregatorConfig{
			DBTimeout:      cfg.Pipeline.DBTimeout,
			WebTimeout:     cfg.Pipeline.WebTimeout,
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		}, logger),
		synthesizer,
		runtimeServices,
		orchestratorConfig,
		logger,
	)

	var agentService driving.AgentService
	if len(cfg.LLM.Agents) > 0 {
		agentService = services.NewMultiAgentCoordinator(
			runtimeServices,
			searchProvider,
			synthesizer,
			cfg.LLM.Agents,
			services.DefaultMultiAgentConfig(),
			logger,
		)
	}

	jobService := services.NewJobService(answerService, taskQueue, answerStore, logger)

	var authService driving.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(
			auth.NewAdapter(cfg.Auth.JWTSecret),
			map[string]string{cfg.Auth.ClientID: cfg.Auth.ClientSecretHash},
			cfg.Auth.TokenTTL,
		)
		log.Println("API authentication enabled")
	}

	// ===== Readiness checks =====
	checks := map[string]http.Pinger{
		"generator": http.PingFunc(func(ctx context.Context) error {
			gen := runtimeServices.Generator()
			if gen == nil {
				return domain.ErrServiceUnavailable
			}
			return gen.Ping(ctx)
		}),
	}
	if db != nil {
		checks["postgres"] = db
	}
	if redisClient != nil {
		checks["redis"] = http.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	apiServices := http.Services{
		Answer: answerService,
		Agents: agentService,
		Jobs:   jobService,
		Auth:   authService,
	}

	switch mode {
	case "api":
		// API-only mode: HTTP server, no worker
		runAPI(cfg, apiServices, checks, collector, logger)

	case "worker":
		// Worker-only mode: Task processing, no HTTP server
		runWorkerMode(ctx, cfg, taskQueue, jobService, collector, logger)

	case "all":
		// Combined mode: Run both API and Worker
		if taskQueue != nil {
			go runWorkerMode(ctx, cfg, taskQueue, jobService, collector, logger)
		} else {
			log.Println("No task queue configured; async jobs are disabled")
		}
		// Run API in foreground (blocks)
		runAPI(cfg, apiServices, checks, collector, logger)

	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, all, or ingest)", mode)
	}
}

// openVectorStore opens the chromem collection. Returns nil when the
// embedding backend cannot be configured.
func openVectorStore(cfg *config.Config, logger *slog.Logger) *chromem.Store {
	embed, err := chromem.NewEmbeddingFunc(
		domain.AIProvider(cfg.VectorStore.EmbeddingProvider),
		cfg.VectorStore.EmbeddingModel,
		cfg.VectorStore.EmbeddingBaseURL,
		cfg.VectorStore.EmbeddingAPIKey,
	)
	if err != nil {
		logger.Warn("vector store disabled", "error", err)
		return nil
	}
	store, err := chromem.NewStore(chromem.Config{
		Path:       cfg.VectorStore.Path,
		Collection: cfg.VectorStore.Collection,
		Compress:   cfg.VectorStore.Compress,
	}, embed)
	if err != nil {
		logger.Warn("vector store disabled", "error", err)
		return nil
	}
	log.Printf("Vector store %s loaded with %d chunks", cfg.VectorStore.Collection, store.Count())
	return store
}

// setupGenerators creates the primary generator and one generator per agent
// endpoint. The primary generator is returned even when it is unreachable so
// synthesis can fall back to the apology answer.
func setupGenerators(
	ctx context.Context,
	cfg *config.Config,
	factory *ai.Factory,
	runtimeServices *runtime.Services,
	collector *metrics.Collector,
	logger *slog.Logger,
) driven.TextGenerator {
	gen, err := factory.CreateTextGenerator(cfg.LLM.Settings())
	if err != nil {
		log.Fatalf("Failed to create text generator: %v", err)
	}
	gen = metrics.InstrumentGenerator(gen, collector)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = runtimeServices.ValidateAndSetGenerator(pingCtx, gen)
	cancel()
	if err != nil {
		logger.Warn("primary generator unreachable", "base_url", cfg.LLM.BaseURL, "error", err)
		gen, _ = factory.CreateTextGenerator(cfg.LLM.Settings())
		gen = metrics.InstrumentGenerator(gen, collector)
		runtimeServices.SetGenerator(gen)
	}

	for _, agent := range cfg.LLM.Agents {
		if runtimeServices.AgentGenerator(agent.Endpoint) != nil {
			continue
		}
		settings := cfg.LLM.Settings()
		settings.BaseURL = agent.Endpoint
		if agent.Model != "" {
			settings.Model = agent.Model
		}
		agentGen, err := factory.CreateTextGenerator(settings)
		if err != nil {
			logger.Warn("agent endpoint skipped", "role", agent.Role, "endpoint", agent.Endpoint, "error", err)
			continue
		}
		runtimeServices.SetAgentGenerator(agent.Endpoint, metrics.InstrumentGenerator(agentGen, collector))
	}

	return gen
}

func wrapRetriever(
	r driven.Retriever,
	cache driven.RetrievalCache,
	ttl time.Duration,
	collector *metrics.Collector,
	logger *slog.Logger,
) driven.Retriever {
	r = metrics.InstrumentRetriever(r, collector)
	if cache != nil {
		r = services.NewCachedRetriever(r, cache, ttl, logger)
	}
	return r
}

func runAPI(
	cfg *config.Config,
	apiServices http.Services,
	checks map[string]http.Pinger,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	server := http.NewServer(http.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		MetricsPath:     cfg.Metrics.Path,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, apiServices, checks, collector, logger)

	log.Printf("API server starting on %s", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode processes answer jobs from the queue until ctx is cancelled.
func runWorkerMode(
	ctx context.Context,
	cfg *config.Config,
	taskQueue driven.TaskQueue,
	jobService driving.JobService,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	if taskQueue == nil {
		log.Fatalf("Worker mode requires redis.url or database.url")
	}
	log.Println("Starting worker mode...")

	workerConfig := worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Processor:      jobService,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
		JobTimeout:     cfg.Pipeline.Budget + 2*cfg.LLM.Timeout,
	}
	if collector != nil {
		workerConfig.OnJob = collector.RecordJob
	}
	w := worker.NewWorker(workerConfig)

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	log.Println("Worker started, processing answer jobs...")

	// Wait for context cancellation
	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// runIngest indexes every supported file below the directory given as the
// second argument (or INGEST_DIR).
func runIngest(ctx context.Context, cfg *config.Config, store *chromem.Store, logger *slog.Logger) {
	if store == nil {
		log.Fatalf("Ingest requires a working vector store")
	}
	dir := getEnv("INGEST_DIR", "./data/documents")
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	ingest := services.NewIngestService(
		store,
		normalisers.DefaultRegistry(),
		postprocessors.IngestPipeline(postprocessors.DefaultChunkConfig()),
		normalisers.MIMETypeForPath,
		logger,
	)

	log.Printf("Ingesting %s into collection %s", dir, cfg.VectorStore.Collection)
	stats, err := ingest.IngestDir(ctx, dir)
	if err != nil {
		log.Fatalf("Ingest failed: %v", err)
	}
	log.Printf("Ingest complete: %d files indexed, %d skipped, %d chunks in %v",
		stats.FilesIndexed, stats.FilesSkipped, stats.ChunksIndexed, stats.Duration)
	for _, e := range stats.Errors {
		log.Printf("  error: %s", e)
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
