package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/ossfeed/coordinator/internal/common/pagination"
	pgRepo "github.com/ossfeed/coordinator/internal/infra/adapter/persistence/postgres"
	"github.com/ossfeed/coordinator/internal/infra/db"
	"github.com/ossfeed/coordinator/internal/infra/extract"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/infra/pubsub"
	"github.com/ossfeed/coordinator/internal/infra/vectorstore"
	"github.com/ossfeed/coordinator/internal/observability/logging"
	"github.com/ossfeed/coordinator/internal/observability/metrics"
	"github.com/ossfeed/coordinator/internal/observability/slo"
	"github.com/ossfeed/coordinator/internal/observability/tracing"
	"github.com/ossfeed/coordinator/pkg/config"
	"github.com/ossfeed/coordinator/pkg/ratelimit"
	"github.com/ossfeed/coordinator/pkg/security/csp"

	"github.com/ossfeed/coordinator/internal/usecase/crawl"
	"github.com/ossfeed/coordinator/internal/usecase/digest"
	"github.com/ossfeed/coordinator/internal/usecase/feedsync"
	"github.com/ossfeed/coordinator/internal/usecase/retrieval"
	"github.com/ossfeed/coordinator/internal/usecase/stream"
	"github.com/ossfeed/coordinator/internal/usecase/summarize"
	"github.com/ossfeed/coordinator/internal/usecase/vectorize"

	hhttp "github.com/ossfeed/coordinator/internal/handler/http"
	"github.com/ossfeed/coordinator/internal/handler/http/consumerapi"
	"github.com/ossfeed/coordinator/internal/handler/http/middleware"
	"github.com/ossfeed/coordinator/internal/handler/http/requestid"
	"github.com/ossfeed/coordinator/internal/handler/http/workerapi"
)

// @title           Catchup Feed Coordinator API
// @version         1.0
// @description     Worker-facing dispatch surface and consumer-facing retrieval/streaming
// @description     surface for the RSS ingestion, enrichment, and retrieval coordinator.

// @contact.name   API Support
// @contact.url    https://github.com/ossfeed/coordinator
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey AppKeyAuth
// @in header
// @name X-App-Key
// @description Shared installation app key, signed as a JWT with no per-caller claims.

func main() {
	logger := initLogger()
	validateAppKeySecret(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	serverComponents := setupServer(logger, database, version)

	runServer(logger, serverComponents, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// validateAppKeySecret validates the APP_KEY_SECRET environment variable
// used to sign and verify the shared worker/consumer app key.
func validateAppKeySecret(logger *slog.Logger) {
	secret := os.Getenv("APP_KEY_SECRET")
	if secret == "" {
		logger.Error("APP_KEY_SECRET must be set")
		os.Exit(1)
	}
	if len(secret) < 32 {
		logger.Error("APP_KEY_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("APP_KEY_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler     http.Handler
	IPStore     *ratelimit.InMemoryRateLimitStore
	UserStore   *ratelimit.InMemoryRateLimitStore
	IPWindow    time.Duration
	UserWindow  time.Duration
	AuthLimiter *middleware.RateLimiter // Legacy rate limiter for cleanup
	Notifier    *pubsub.Publisher       // optional NATS claim-notification side channel
	DB          *sql.DB
	FeedSync    *feedsync.Service
}

// services bundles every usecase package the HTTP surface dispatches into,
// constructed once atop the shared postgres repositories, vector store, and
// model-provider registry.
type services struct {
	FeedSync  *feedsync.Service
	Crawl     *crawl.Service
	Vectorize *vectorize.Service
	Summarize *summarize.Engine
	Digest    *digest.Service
	Retrieval *retrieval.Service
	Stream    *stream.Transformer
	Notifier  *pubsub.Publisher
}

func buildServices(database *sql.DB) (*services, error) {
	feeds := pgRepo.NewFeedRepo(database)
	articles := pgRepo.NewArticleRepo(database)
	scripts := pgRepo.NewFeedExtractionScriptRepo(database)
	batches := pgRepo.NewCrawlBatchRepo(database)
	tasks := pgRepo.NewVectorizationTaskRepo(database)
	summaries := pgRepo.NewDailySummaryRepo(database)
	syncLogs := pgRepo.NewFeedSyncLogRepo(database)
	llmConfigs := pgRepo.NewLLMProviderConfigRepo(database)

	store, err := vectorstore.NewFromEnv(database)
	if err != nil {
		return nil, err
	}
	configSource, err := llm.ConfigsFromEnv(llmConfigs)
	if err != nil {
		return nil, err
	}
	registry := llm.NewRegistry(configSource)

	summarizeEngine := summarize.NewEngine(articles, pgRepo.NewArticleContentRepo(database), registry, summarize.Config{
		ProviderType: os.Getenv("SUMMARIZE_PROVIDER"),
		ChatModel:    os.Getenv("SUMMARIZE_MODEL"),
	})

	crawlSvc := crawl.NewService(articles, scripts, batches, summarizeEngine, crawl.DefaultConfig())
	crawlSvc.Deriver = extract.Deriver{}

	vectorizeSvc := vectorize.NewService(articles, tasks, store, registry, vectorize.Config{
		EmbeddingModel:  config.GetEnvString("EMBEDDING_MODEL", "text-embedding-3-small"),
		VectorDimension: config.GetEnvInt("VECTOR_DIMENSION", 1536),
		ProviderType:    os.Getenv("EMBEDDING_PROVIDER"),
	})

	digestSvc := digest.NewService(articles, summaries, feeds, registry, digest.Config{
		ProviderType: os.Getenv("DIGEST_PROVIDER"),
		ChatModel:    os.Getenv("DIGEST_MODEL"),
	})

	retrievalSvc := retrieval.NewService(articles, feeds, store, registry, retrieval.Config{
		EmbeddingProviderType: os.Getenv("EMBEDDING_PROVIDER"),
		EmbeddingModel:        config.GetEnvString("EMBEDDING_MODEL", "text-embedding-3-small"),
	})

	streamTransformer := stream.NewTransformer(articles, registry, stream.Config{
		ProviderType: os.Getenv("STREAM_PROVIDER"),
		ChatModel:    os.Getenv("STREAM_MODEL"),
	})

	feedSyncSvc := feedsync.NewService(feeds, syncLogs, feedsync.Config{
		LeaseTimeout:           config.GetEnvDuration("FEED_SYNC_LEASE_TIMEOUT", 30*time.Minute),
		AutoDisableThreshold:   config.GetEnvInt("FEED_SYNC_AUTO_DISABLE_THRESHOLD", 20),
		SuccessIntervalMinutes: config.GetEnvInt("FEED_SYNC_SUCCESS_INTERVAL_MINUTES", 30),
	})

	notifier, err := pubsub.Connect()
	if err != nil {
		slog.Warn("NATS claim-notification side channel unavailable, continuing HTTP-only", slog.Any("error", err))
		notifier = nil
	}

	return &services{
		FeedSync:  feedSyncSvc,
		Crawl:     crawlSvc,
		Vectorize: vectorizeSvc,
		Summarize: summarizeEngine,
		Digest:    digestSvc,
		Retrieval: retrievalSvc,
		Stream:    streamTransformer,
		Notifier:  notifier,
	}, nil
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
	svcs, err := buildServices(database)
	if err != nil {
		logger.Error("failed to construct services", slog.Any("error", err))
		os.Exit(1)
	}

	// Load rate limiting configuration
	rateLimitConfig, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create appropriate IPExtractor based on configuration
	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	// Initialize rate limiting components (if enabled)
	var ipRateLimiter *middleware.IPRateLimiter
	var userRateLimiter *middleware.UserRateLimiter
	var ipStore *ratelimit.InMemoryRateLimitStore
	var userStore *ratelimit.InMemoryRateLimitStore

	if rateLimitConfig.Enabled {
		// Create separate stores for IP and user rate limiting
		// This allows independent memory management and cleanup
		ipStore = ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: rateLimitConfig.MaxActiveKeys,
		})
		userStore = ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: rateLimitConfig.MaxActiveKeys,
		})

		algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
		metrics := ratelimit.NewPrometheusMetrics()

		// Create circuit breakers for IP and User rate limiters
		ipCircuitBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})

		userCircuitBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})

		// Create degradation managers for graceful degradation
		ipDegradationMgr := middleware.NewDegradationManager(middleware.DegradationConfig{
			AutoAdjust:        true,
			CooldownPeriod:    1 * time.Minute,
			RelaxedMultiplier: 2,
			MinimalMultiplier: 10,
			Clock:             &ratelimit.SystemClock{},
			Metrics:           metrics,
			LimiterType:       "ip",
		})

		userDegradationMgr := middleware.NewDegradationManager(middleware.DegradationConfig{
			AutoAdjust:        true,
			CooldownPeriod:    1 * time.Minute,
			RelaxedMultiplier: 2,
			MinimalMultiplier: 10,
			Clock:             &ratelimit.SystemClock{},
			Metrics:           metrics,
			LimiterType:       "user",
		})

		// Circuit breaker state is polled by the degradation managers via
		// IsOpen(), not pushed through a callback.
		_ = ipDegradationMgr
		_ = userDegradationMgr

		// Create IP rate limiter
		ipRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor,
			ipStore,
			algorithm,
			metrics,
			ipCircuitBreaker,
		)

		// Create user rate limiter with tier-based limits
		tierLimits := make(map[ratelimit.UserTier]middleware.TierLimit)
		for _, tierCfg := range rateLimitConfig.TierLimits {
			tierLimits[tierCfg.Tier] = middleware.TierLimit{
				Limit:  tierCfg.Limit,
				Window: tierCfg.Window,
			}
		}

		// There is no per-end-user identity in this surface (only the
		// shared app key), so the JWT user extractor always misses and
		// SkipUnauthenticated governs every request. Kept wired so a
		// future per-caller tier scheme only needs a context key change.
		userExtractor := middleware.NewJWTUserExtractor("user", nil)

		userRateLimiter = middleware.NewUserRateLimiter(middleware.UserRateLimiterConfig{
			Store:               userStore,
			Algorithm:           algorithm,
			Metrics:             metrics,
			CircuitBreaker:      userCircuitBreaker,
			UserExtractor:       userExtractor,
			TierLimits:          tierLimits,
			DefaultLimit:        rateLimitConfig.DefaultUserLimit,
			DefaultWindow:       rateLimitConfig.DefaultUserWindow,
			SkipUnauthenticated: true,
			Clock:               &ratelimit.SystemClock{},
		})

		logger.Info("rate limiting initialized",
			slog.Bool("enabled", true),
			slog.Int("ip_limit", rateLimitConfig.DefaultIPLimit),
			slog.Duration("ip_window", rateLimitConfig.DefaultIPWindow),
			slog.Int("user_limit", rateLimitConfig.DefaultUserLimit),
			slog.Duration("user_window", rateLimitConfig.DefaultUserWindow),
			slog.Int("max_keys", rateLimitConfig.MaxActiveKeys),
		)
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	rootMux := setupRoutes(database, version, svcs, userRateLimiter, logger)
	handler := applyMiddleware(logger, rootMux, ipRateLimiter)

	return &ServerComponents{
		Handler:    handler,
		IPStore:    ipStore,
		UserStore:  userStore,
		IPWindow:   rateLimitConfig.DefaultIPWindow,
		UserWindow: rateLimitConfig.DefaultUserWindow,
		Notifier:   svcs.Notifier,
		DB:         database,
		FeedSync:   svcs.FeedSync,
	}
}

// setupRoutes registers all HTTP routes (public and protected).
func setupRoutes(
	database *sql.DB,
	version string,
	svcs *services,
	userRateLimiter *middleware.UserRateLimiter,
	logger *slog.Logger,
) *http.ServeMux {
	publicMux := http.NewServeMux()
	publicMux.Handle("/health", &hhttp.HealthHandler{DB: database, Version: version})
	publicMux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", metrics.Handler())
	publicMux.Handle("/swagger/", httpSwagger.WrapHandler)

	workerMux := http.NewServeMux()
	feedSyncH := workerapi.FeedSync{Svc: svcs.FeedSync, Notifier: svcs.Notifier}
	workerMux.HandleFunc("GET /worker/pending_feeds", feedSyncH.PendingFeeds)
	workerMux.HandleFunc("POST /worker/claim_feed", feedSyncH.ClaimFeed)
	workerMux.HandleFunc("POST /worker/submit_feed_result", feedSyncH.SubmitFeedResult)
	workerMux.HandleFunc("GET /worker/feed_sync_stats", feedSyncH.Stats)
	workerMux.HandleFunc("POST /worker/reset_feed_failures", feedSyncH.ResetFailures)

	crawlH := workerapi.Crawl{Svc: svcs.Crawl, Notifier: svcs.Notifier}
	workerMux.HandleFunc("GET /worker/pending_articles", crawlH.PendingArticles)
	workerMux.HandleFunc("POST /worker/claim_article", crawlH.ClaimArticle)
	workerMux.HandleFunc("POST /worker/submit_result", crawlH.SubmitResult)
	workerMux.HandleFunc("GET /worker/logs", crawlH.Logs)
	workerMux.HandleFunc("GET /worker/crawl_stats", crawlH.Stats)
	workerMux.HandleFunc("POST /worker/reset_batch", crawlH.ResetBatch)

	vectorizeH := workerapi.Vectorize{Svc: svcs.Vectorize, Notifier: svcs.Notifier}
	workerMux.HandleFunc("POST /worker/pending_vectorization", vectorizeH.Pending)
	workerMux.HandleFunc("POST /worker/claim_vectorization_task", vectorizeH.ClaimTask)
	workerMux.HandleFunc("POST /worker/process_article_vectorization", vectorizeH.Process)

	stepsH := workerapi.Steps{Engine: svcs.Summarize}
	workerMux.HandleFunc("POST /worker/update_article_processing_step", stepsH.Update)

	digestH := workerapi.Digest{Svc: svcs.Digest}
	workerMux.HandleFunc("GET /worker/get_feeds_needing_summary", digestH.FeedsNeedingSummary)
	workerMux.HandleFunc("GET /worker/process_feed_summary", digestH.ProcessFeedSummary)

	consumerMux := http.NewServeMux()
	retrievalH := consumerapi.Retrieval{Svc: svcs.Retrieval}
	consumerMux.HandleFunc("GET /articles/{id}", retrievalH.Detail)
	consumerMux.HandleFunc("POST /search", retrievalH.Search)
	consumerMux.HandleFunc("GET /stats", retrievalH.Stats)

	listArticlesH := consumerapi.ListArticles{
		Articles:   pgRepo.NewArticleRepo(database),
		Pagination: pagination.LoadFromEnv(),
	}
	consumerMux.HandleFunc("GET /articles", listArticlesH.List)

	streamH := consumerapi.Stream{Transformer: svcs.Stream}
	consumerMux.HandleFunc("POST /summarize", streamH.Summarize)
	consumerMux.HandleFunc("POST /translate", streamH.Translate)

	protectedMux := http.NewServeMux()
	protectedMux.Handle("/worker/", workerMux)
	protectedMux.Handle("/", consumerMux)

	secret := []byte(os.Getenv("APP_KEY_SECRET"))
	var protected http.Handler = middleware.AppKeyAuth(secret)(protectedMux)
	if userRateLimiter != nil {
		protected = userRateLimiter.Middleware()(protected)
	}

	rootMux := http.NewServeMux()
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/swagger/", publicMux)
	rootMux.Handle("/", protected)

	logger.Info("routes registered")
	return rootMux
}

// applyMiddleware wraps the handler with middleware chain.
// Middleware order: CORS → Request ID → IP Rate Limit → Recovery → Logging → Body Limit → CSP → Metrics
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	// Load CORS configuration from environment variables
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Inject SlogAdapter for logging
	corsConfig.Logger = &middleware.SlogAdapter{Logger: logger}

	// Log CORS startup configuration
	logger.Info("CORS enabled",
		slog.Int("allowed_origins_count", len(corsConfig.Validator.GetAllowedOrigins())),
		slog.Any("allowed_origins", corsConfig.Validator.GetAllowedOrigins()),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Any("allowed_headers", corsConfig.AllowedHeaders),
		slog.Int("max_age", corsConfig.MaxAge))

	// Load CSP configuration
	cspConfig, err := config.LoadCSPConfig()
	if err != nil {
		logger.Error("failed to load CSP configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create CSP middleware
	var cspMiddleware func(http.Handler) http.Handler
	if cspConfig.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:       true,
			DefaultPolicy: csp.StrictPolicy(),
			PathPolicies: map[string]*csp.CSPBuilder{
				"/swagger/": csp.SwaggerUIPolicy(),
			},
			ReportOnly: cspConfig.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
		logger.Info("CSP enabled",
			slog.Bool("report_only", cspConfig.ReportOnly))
	} else {
		// No-op middleware if CSP is disabled
		cspMiddleware = func(next http.Handler) http.Handler {
			return next
		}
		logger.Warn("CSP is disabled")
	}

	// Build middleware chain
	// Recommended order:
	// 1. CORS (handles preflight requests early)
	// 2. Request ID (generates unique ID for request tracking)
	// 3. Tracing (starts the request span so downstream logging/metrics can read it)
	// 4. IP Rate Limiting (check rate limit before expensive operations)
	// 5. Recovery (catch panics)
	// 6. Logging (log all requests)
	// 7. Body Size Limit (prevent DoS)
	// 8. CSP (set security headers)
	// 9. Metrics (record request metrics)
	// 10. Authentication (in routes layer)
	// 11. User Rate Limiting (in routes layer, after auth)

	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = metrics.Middleware(middlewareChain)
	middlewareChain = cspMiddleware(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = hhttp.Recover(logger)(middlewareChain)

	// Apply IP rate limiting if enabled
	if ipRateLimiter != nil {
		middlewareChain = ipRateLimiter.Middleware()(middlewareChain)
	}

	middlewareChain = tracing.Middleware(middlewareChain)
	middlewareChain = requestid.Middleware(middlewareChain)
	middlewareChain = middleware.CORS(*corsConfig)(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	// Create a context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load cleanup configuration
	cleanupCfg := hhttp.LoadCleanupConfigFromEnv()

	// Start background cleanup goroutines for rate limit stores
	if components.IPStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupCfg.Interval, components.IPWindow, "ip")
		logger.Info("IP rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.IPWindow))
	}

	if components.UserStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.UserStore, cleanupCfg.Interval, components.UserWindow, "user")
		logger.Info("user rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.UserWindow))
	}

	// Start cleanup for legacy auth rate limiter
	if components.AuthLimiter != nil {
		go hhttp.StartRateLimitCleanupLegacy(ctx, components.AuthLimiter, cleanupCfg.Interval, "auth")
		logger.Info("auth rate limit cleanup started (legacy)",
			slog.Duration("interval", cleanupCfg.Interval))
	}

	go reportBusinessAndSLOMetrics(ctx, components)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Cancel background goroutines (rate limit cleanup)
	cancel()
	logger.Debug("background cleanup goroutines cancelled")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	components.Notifier.Close()
	logger.Info("server stopped")
}
