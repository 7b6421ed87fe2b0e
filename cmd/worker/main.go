package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	pgRepo "github.com/ossfeed/coordinator/internal/infra/adapter/persistence/postgres"
	"github.com/ossfeed/coordinator/internal/infra/db"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	workerPkg "github.com/ossfeed/coordinator/internal/infra/worker"
	"github.com/ossfeed/coordinator/internal/observability/logging"
	"github.com/ossfeed/coordinator/internal/usecase/digest"
	"github.com/ossfeed/coordinator/internal/usecase/hottopic"
)

// waitForMigrations blocks until the schema the coordinator depends on is
// reachable, retrying a bounded number of times before giving up.
func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM feeds LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// jobs bundles the two internal schedules this binary drives: daily-digest
// generation and hot-topic aggregation. Neither is reachable over HTTP —
// both are cron-only, since external feed fetching is an operator-run
// crawler's job, talking to the coordinator's worker-facing RPC surface
// instead.
type jobs struct {
	Digest   *digest.Service
	HotTopic *hottopic.Aggregator
}

func buildJobs(database *sql.DB) *jobs {
	feeds := pgRepo.NewFeedRepo(database)
	articles := pgRepo.NewArticleRepo(database)
	summaries := pgRepo.NewDailySummaryRepo(database)
	rawTopics := pgRepo.NewRawHotTopicRepo(database)
	unifiedTopics := pgRepo.NewUnifiedHotTopicRepo(database)
	llmConfigs := pgRepo.NewLLMProviderConfigRepo(database)

	configSource, err := llm.ConfigsFromEnv(llmConfigs)
	if err != nil {
		slog.Error("load provider configs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	registry := llm.NewRegistry(configSource)

	digestSvc := digest.NewService(articles, summaries, feeds, registry, digest.Config{
		ProviderType: os.Getenv("DIGEST_PROVIDER"),
		ChatModel:    os.Getenv("DIGEST_MODEL"),
	})

	hotTopicAgg := hottopic.NewAggregator(rawTopics, unifiedTopics, registry, hottopic.Config{
		ProviderType: os.Getenv("HOTTOPIC_PROVIDER"),
		ChatModel:    os.Getenv("HOTTOPIC_MODEL"),
	})

	return &jobs{Digest: digestSvc, HotTopic: hotTopicAgg}
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("max_concurrent_feeds", workerConfig.NotifyMaxConcurrent),
		slog.Duration("job_timeout", workerConfig.CrawlTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	j := buildJobs(database)

	startCronWorker(logger, j, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// startCronWorker starts the cron scheduler and runs the digest and
// hot-topic jobs on the configured schedule.
func startCronWorker(logger *slog.Logger, j *jobs, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runDigestJob(logger, j.Digest, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add digest cron job", slog.Any("error", err))
		os.Exit(1)
	}

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runHotTopicJob(logger, j.HotTopic, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add hot-topic cron job", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runDigestJob generates today's bilingual feed summaries, bounding the
// number of feeds processed concurrently by NotifyMaxConcurrent.
func runDigestJob(logger *slog.Logger, svc *digest.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("digest job started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CrawlTimeout)
	defer cancel()

	today := time.Now().In(time.UTC).Truncate(24 * time.Hour)
	languages := []entity.Language{entity.LanguageChinese, entity.LanguageEnglish}

	var processed int
	for _, language := range languages {
		feedIDs, err := svc.GetFeedsNeedingSummary(ctx, today, language)
		if err != nil {
			logger.Error("digest: list feeds needing summary failed",
				slog.String("language", string(language)), slog.Any("error", err))
			metrics.RecordJobRun("failure")
			metrics.RecordJobDuration(time.Since(startTime).Seconds())
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxInt(cfg.NotifyMaxConcurrent, 1))
		for _, feedID := range feedIDs {
			feedID := feedID
			g.Go(func() error {
				if _, err := svc.GenerateFeedSummary(gctx, feedID, today, language); err != nil {
					logger.Error("digest: feed summary failed",
						slog.String("feed_id", feedID), slog.String("language", string(language)), slog.Any("error", err))
					return nil
				}
				return nil
			})
		}
		_ = g.Wait()
		processed += len(feedIDs)
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordFeedsProcessed(processed)
	metrics.RecordLastSuccess()
	logger.Info("digest job completed", slog.Int("feeds_processed", processed))
}

// runHotTopicJob re-clusters today's raw hot-topic rows into the unified
// set served by the retrieval façade.
func runHotTopicJob(logger *slog.Logger, agg *hottopic.Aggregator, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	logger.Info("hot-topic job started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CrawlTimeout)
	defer cancel()

	today := time.Now().In(time.UTC).Truncate(24 * time.Hour)
	topics, err := agg.AggregateDate(ctx, today)
	if err != nil {
		logger.Error("hot-topic job failed", slog.Any("error", err))
		return
	}

	logger.Info("hot-topic job completed",
		slog.Int("topics", len(topics)),
		slog.Duration("duration", time.Since(startTime)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
