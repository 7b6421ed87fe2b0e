package repository

import (
	"context"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// CrawlBatchRepository is the append-only store adapter for CrawlBatch and
// its CrawlLog children.
type CrawlBatchRepository interface {
	Append(ctx context.Context, batch *entity.CrawlBatch, logs []entity.CrawlLog) error
	Get(ctx context.Context, batchID string) (*entity.CrawlBatch, error)
	Logs(ctx context.Context, batchID string) ([]entity.CrawlLog, error)
	List(ctx context.Context, filter Filter, req PageRequest) (Page[*entity.CrawlBatch], error)
	Stats(ctx context.Context) (CrawlStats, error)

	// ResetBatch re-queues the batch's article in the same transaction as
	// the log delete: lease cleared, status=pending, error_message=NULL.
	// retry_count is left untouched; zeroing it is ResetArticle's job.
	ResetBatch(ctx context.Context, batchID string) error
}

// CrawlStats is the aggregate counters returned by GET stats on the crawl
// surface.
type CrawlStats struct {
	TotalBatches   int64
	SuccessBatches int64
	FailedBatches  int64
	AvgProcessingTimeMs float64
}

// FeedExtractionScriptRepository is the store adapter for per-feed
// extraction scripts. Publishing enforces "one published row per feed".
type FeedExtractionScriptRepository interface {
	// Published returns the currently published script for feedID, or nil if
	// none exists.
	Published(ctx context.Context, feedID string) (*entity.FeedExtractionScript, error)

	// PublishedBatch returns the published script for each of the given feed
	// ids in one round trip, memoizing lookups for a pending_articles page.
	PublishedBatch(ctx context.Context, feedIDs []string) (map[string]*entity.FeedExtractionScript, error)

	// Publish inserts a new version as published and clears is_published on
	// any prior published row for the same feed, atomically.
	Publish(ctx context.Context, script *entity.FeedExtractionScript) error

	List(ctx context.Context, feedID string) ([]*entity.FeedExtractionScript, error)
}

// VectorizationTaskRepository is the store adapter for VectorizationTask
// bookkeeping rows.
type VectorizationTaskRepository interface {
	Append(ctx context.Context, task *entity.VectorizationTask) error
	Get(ctx context.Context, batchID string) (*entity.VectorizationTask, error)
}
