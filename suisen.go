// Package suisen is the public API for embedding the Suisen matching server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := suisen.New(
//	    suisen.WithVersion(version),
//	    suisen.WithLogger(logger),
//	    suisen.WithEmbeddingProvider(myProvider{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: suisen (root) imports
// internal/*, but internal/* never imports suisen (root). Public types
// (FeedbackSignal, the provider interfaces) are standalone with no internal
// imports; the adapters that convert them to internal types live here because
// this is the only file that sees both sides of the boundary.
package suisen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/api"
	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/cluster"
	"github.com/ashita-ai/suisen/internal/config"
	"github.com/ashita-ai/suisen/internal/graph"
	"github.com/ashita-ai/suisen/internal/learning"
	"github.com/ashita-ai/suisen/internal/match"
	"github.com/ashita-ai/suisen/internal/mcp"
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/query"
	"github.com/ashita-ai/suisen/internal/ratelimit"
	"github.com/ashita-ai/suisen/internal/screening"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/server"
	"github.com/ashita-ai/suisen/internal/service/embedding"
	"github.com/ashita-ai/suisen/internal/service/feedback"
	"github.com/ashita-ai/suisen/internal/storage"
	"github.com/ashita-ai/suisen/internal/talent"
	"github.com/ashita-ai/suisen/internal/telemetry"
	"github.com/ashita-ai/suisen/migrations"
)

// App is the Suisen server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	graph        *graph.Graph
	qdrantIndex  *search.Index      // nil when Qdrant is not configured
	reconciler   *search.Reconciler // nil when Qdrant is not configured
	trace        *learning.Trace
	limiter      ratelimit.Limiter // nil when rate limiting is disabled
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Suisen server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("suisen starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		Service:     cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run built-in migrations, then any extra migration filesystems.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	// Verify critical tables exist after migration.
	var schemaOK bool
	if err := db.Pool().QueryRow(context.Background(),
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'positions')`,
	).Scan(&schemaOK); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("schema verification: %w", err)
	}
	if !schemaOK {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("critical table 'positions' does not exist after migration — check that the pgvector extension can be created")
	}

	// Create embedding provider — external override takes priority over auto-detect.
	var embedder embedding.Provider
	if o.embeddingProvider != nil {
		embedder = &embedderAdapter{p: o.embeddingProvider}
	} else {
		embedder = newEmbeddingProvider(cfg, logger)
	}
	embedder = embedding.Metered(embedder)

	// Vector index: Qdrant when configured, otherwise the in-process
	// memory index so every surface still works on a single node.
	var (
		idx         graph.Index
		indexHealth server.HealthChecker
		qdrantIndex *search.Index
	)
	if cfg.QdrantURL != "" {
		qdrantIndex, err = search.NewIndex(search.Config{
			URL:    cfg.QdrantURL,
			APIKey: cfg.QdrantAPIKey,
			Prefix: cfg.CollectionPrefix,
			Dims:   uint64(cfg.VectorDim), //nolint:gosec // validated positive in config.Validate
		}, logger)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		if err := qdrantIndex.EnsureCollections(context.Background()); err != nil {
			_ = qdrantIndex.Close()
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant ensure collections: %w", err)
		}
		idx = qdrantIndex
		indexHealth = qdrantIndex
		logger.Info("qdrant: enabled", "prefix", cfg.CollectionPrefix)
	} else {
		mem := search.NewMemoryIndex(logger)
		idx = mem
		indexHealth = mem
		logger.Info("vector index: in-process memory (no QDRANT_URL)")
	}

	// Knowledge graph over Postgres, the candidate store, and the index.
	g := graph.New(db, idx, embedder, logger)

	// Outbox reconciler repairs the Qdrant index from relational truth.
	// The memory index lives in the same process, so it needs none.
	var reconciler *search.Reconciler
	if qdrantIndex != nil {
		reconciler = search.NewReconciler(db.Pool(), qdrantIndex, g, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	}

	// Restore the candidate store from index record blobs.
	restored, err := g.Rehydrate(context.Background())
	if err != nil {
		if qdrantIndex != nil {
			_ = qdrantIndex.Close()
		}
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("rehydrate candidates: %w", err)
	}
	if restored > 0 {
		logger.Info("candidate store rehydrated", "count", restored)
	}

	// Learning trace (SQLite).
	trace, err := learning.OpenTrace(cfg.TracePath)
	if err != nil {
		if qdrantIndex != nil {
			_ = qdrantIndex.Close()
		}
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("learning trace: %w", err)
	}
	tracker := learning.NewTracker(trace, logger)

	banditCfg := bandit.Config{
		Kappa:    cfg.BanditWarmScale,
		FGLambda: cfg.BanditFeelGood,
	}

	// Query engine and scoring pipeline.
	engine := query.New(g, idx, embedder, logger).WithDeadline(cfg.HybridDeadline)
	matcher := match.New(g, logger, match.Config{Bandit: banditCfg})
	scorer := talent.New(g, logger, talent.DefaultThresholds())
	screener := screening.New(g, logger, screening.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MustHaveStrictness:  cfg.MustHaveStrictness,
		Bandit:              banditCfg,
	})

	// Feedback parser — external override takes priority over auto-detect.
	var parser feedback.Parser
	if o.feedbackParser != nil {
		parser = &parserAdapter{p: o.feedbackParser}
	} else {
		parser = newFeedbackParser(cfg, logger)
	}
	fb := feedback.New(g, parser, bandit.NewRegistry(), tracker, logger, feedback.Config{Bandit: banditCfg})

	clusterer := cluster.New(g, embedder, logger, cluster.Config{
		KMin:  cfg.ClusterKMin,
		KMax:  cfg.ClusterKMax,
		NInit: cfg.ClusterNInit,
		Seed:  cfg.ClusterSeed,
	})

	// Rate limiter, keyed per tenant by the server middleware.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: in-process token bucket",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	// MCP server.
	mcpSrv := mcp.New(g, engine, scorer, matcher, fb, cfg.DefaultTenant, logger, version)

	// Create HTTP server.
	srv := server.New(server.ServerConfig{
		Graph:               g,
		QueryEngine:         engine,
		Matcher:             matcher,
		Talent:              scorer,
		Screener:            screener,
		Feedback:            fb,
		Clusterer:           clusterer,
		Logger:              logger,
		Trace:               trace,
		DB:                  db,
		Index:               indexHealth,
		MCPServer:           mcpSrv.MCPServer(),
		RateLimiter:         limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		DefaultTenant:       cfg.DefaultTenant,
		BanditConfig:        banditCfg,
		OpenAPISpec:         api.OpenAPISpec,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		graph:        g,
		qdrantIndex:  qdrantIndex,
		reconciler:   reconciler,
		trace:        trace,
		limiter:      limiter,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the reconciler and the HTTP server, then blocks until ctx is
// cancelled or a fatal server error occurs. On return, Shutdown is called
// automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	if a.reconciler != nil {
		a.reconciler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a phased graceful shutdown: (1) stop accepting HTTP
// requests and drain in-flight, (2) drain remaining outbox entries to
// Qdrant. It then closes the index, learning trace, OTEL provider, and
// database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("suisen shutting down")

	// Phase 1: HTTP drain.
	httpCtx, httpCancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	// Phase 2: outbox drain.
	if a.reconciler != nil {
		drainCtx, drainCancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
		a.reconciler.Drain(drainCtx)
		drainCancel()
	}

	// Cleanup.
	if a.qdrantIndex != nil {
		_ = a.qdrantIndex.Close()
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.trace != nil {
		_ = a.trace.Close()
	}
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("suisen stopped")
	return nil
}

// ── Boundary adapters ─────────────────────────────────────────────────────────

// embedderAdapter wraps a public EmbeddingProvider as the internal
// pgvector-typed interface. Vectors are normalized at the boundary so
// external providers keep the unit-length invariant the stores assume.
type embedderAdapter struct {
	p EmbeddingProvider
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := a.p.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(embedding.Normalize(v)), nil
}

func (a *embedderAdapter) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vs, err := a.p.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]pgvector.Vector, len(vs))
	for i, v := range vs {
		out[i] = pgvector.NewVector(embedding.Normalize(v))
	}
	return out, nil
}

func (a *embedderAdapter) Dimensions() int { return a.p.Dimensions() }

// parserAdapter wraps a public FeedbackParser as the internal parser
// interface. Unknown sentiment strings map to neutral.
type parserAdapter struct {
	p FeedbackParser
}

func (a *parserAdapter) Parse(ctx context.Context, text string) (feedback.Parsed, error) {
	sig, err := a.p.Parse(ctx, text)
	if err != nil {
		return feedback.Parsed{}, err
	}
	out := feedback.Parsed{Reward: sig.Reward, Confidence: sig.Confidence}
	switch sig.Sentiment {
	case string(model.FeedbackPositive):
		out.Sentiment = model.FeedbackPositive
	case string(model.FeedbackNegative):
		out.Sentiment = model.FeedbackNegative
	default:
		out.Sentiment = model.FeedbackNeutral
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	dims := cfg.VectorDim

	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when SUISEN_EMBEDDING_PROVIDER=openai")
			return embedding.NewHashProvider(dims)
		}
		logger.Info("embedding provider: openai", "model", cfg.EmbeddingModel, "dimensions", dims)
		p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, dims)
		if err != nil {
			logger.Error("openai provider init failed", "error", err)
			return embedding.NewHashProvider(dims)
		}
		return p
	case "ollama":
		logger.Info("embedding provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims)
	case "hash":
		logger.Info("embedding provider: hash (deterministic, no semantic backend)")
		return embedding.NewHashProvider(dims)
	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("embedding provider: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
			return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("embedding provider: openai (auto-detected)", "model", cfg.EmbeddingModel, "dimensions", dims)
			p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, dims)
			if err != nil {
				logger.Error("openai provider init failed", "error", err)
				return embedding.NewHashProvider(dims)
			}
			return p
		}
		logger.Warn("no embedding backend available, using hash embeddings")
		return embedding.NewHashProvider(dims)
	}
}

func newFeedbackParser(cfg config.Config, logger *slog.Logger) feedback.Parser {
	switch cfg.FeedbackProvider {
	case "ollama":
		logger.Info("feedback parser: ollama", "model", cfg.FeedbackModel, "url", cfg.OllamaURL)
		return feedback.NewOllamaParser(cfg.OllamaURL, cfg.FeedbackModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when SUISEN_FEEDBACK_PROVIDER=openai")
			return feedback.KeywordParser{}
		}
		logger.Info("feedback parser: openai (gpt-4o-mini)")
		return feedback.NewOpenAIParser(cfg.OpenAIAPIKey, "gpt-4o-mini")
	case "keyword":
		logger.Info("feedback parser: keyword (no LLM)")
		return feedback.KeywordParser{}
	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("feedback parser: ollama (auto-detected)", "model", cfg.FeedbackModel, "url", cfg.OllamaURL)
			return feedback.NewOllamaParser(cfg.OllamaURL, cfg.FeedbackModel)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("feedback parser: openai (auto-detected, gpt-4o-mini)")
			return feedback.NewOpenAIParser(cfg.OpenAIAPIKey, "gpt-4o-mini")
		}
		logger.Info("feedback parser: keyword (no LLM available)")
		return feedback.KeywordParser{}
	}
}

func ollamaReachable(baseURL string) bool {
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(c, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
