package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "github.com/ossfeed/coordinator/internal/infra/adapter/persistence/postgres"
	"github.com/ossfeed/coordinator/internal/infra/db"
	"github.com/ossfeed/coordinator/internal/infra/digestctlconfig"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/infra/vectorstore"
	"github.com/ossfeed/coordinator/internal/repository"
	"github.com/ossfeed/coordinator/internal/usecase/crawl"
	"github.com/ossfeed/coordinator/internal/usecase/feedsync"
	"github.com/ossfeed/coordinator/internal/usecase/vectorize"
	"github.com/ossfeed/coordinator/pkg/config"
)

// cliServices bundles the repositories and usecase services digestctl's
// commands drive directly, mirroring cmd/api's buildServices but scoped to
// what an operator CLI needs rather than the full HTTP surface.
type cliServices struct {
	DB        *sql.DB
	Feeds     repository.FeedRepository
	Articles  repository.ArticleRepository
	FeedSync  *feedsync.Service
	Crawl     *crawl.Service
	Vectorize *vectorize.Service
}

// openServices opens the database connection and wires up every service a
// digestctl command might need. Callers are responsible for closing DB.
func openServices() (*cliServices, error) {
	cfg, err := digestctlconfig.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	database := db.Open()

	feeds := pgRepo.NewFeedRepo(database)
	articles := pgRepo.NewArticleRepo(database)
	scripts := pgRepo.NewFeedExtractionScriptRepo(database)
	batches := pgRepo.NewCrawlBatchRepo(database)
	tasks := pgRepo.NewVectorizationTaskRepo(database)
	syncLogs := pgRepo.NewFeedSyncLogRepo(database)
	llmConfigs := pgRepo.NewLLMProviderConfigRepo(database)

	store, err := vectorstore.NewFromEnv(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	configSource, err := llm.ConfigsFromEnv(llmConfigs)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("load provider configs: %w", err)
	}
	registry := llm.NewRegistry(configSource)

	feedSyncSvc := feedsync.NewService(feeds, syncLogs, feedsync.Config{
		LeaseTimeout:           config.GetEnvDuration("FEED_SYNC_LEASE_TIMEOUT", feedsync.DefaultConfig().LeaseTimeout),
		AutoDisableThreshold:   config.GetEnvInt("FEED_SYNC_AUTO_DISABLE_THRESHOLD", feedsync.DefaultConfig().AutoDisableThreshold),
		SuccessIntervalMinutes: config.GetEnvInt("FEED_SYNC_SUCCESS_INTERVAL_MINUTES", feedsync.DefaultConfig().SuccessIntervalMinutes),
	})

	// digestctl never runs an extraction worker itself, so inline
	// post-crawl summarization has nothing to call; a nil Summarizer
	// disables it.
	crawlSvc := crawl.NewService(articles, scripts, batches, nil, crawl.DefaultConfig())

	vectorizeSvc := vectorize.NewService(articles, tasks, store, registry, vectorize.Config{
		EmbeddingModel:  config.GetEnvString("EMBEDDING_MODEL", cfg.EmbeddingModel),
		VectorDimension: config.GetEnvInt("VECTOR_DIMENSION", 1536),
		ProviderType:    os.Getenv("EMBEDDING_PROVIDER"),
	})

	return &cliServices{
		DB:        database,
		Feeds:     feeds,
		Articles:  articles,
		FeedSync:  feedSyncSvc,
		Crawl:     crawlSvc,
		Vectorize: vectorizeSvc,
	}, nil
}

// withServices opens the services for the duration of fn and closes the
// database connection on the way out, regardless of how fn returns.
func withServices(fn func(*cliServices) error) error {
	svcs, err := openServices()
	if err != nil {
		return err
	}
	defer svcs.DB.Close()
	return fn(svcs)
}
