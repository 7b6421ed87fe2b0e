package repository

import (
	"context"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// ArticleRepository is the store adapter for Article (C1), plus the atomic
// claim and lease-scoped submission primitives C5/C6 depend on.
type ArticleRepository interface {
	Get(ctx context.Context, id int64) (*entity.Article, error)
	GetByLink(ctx context.Context, feedID, link string) (*entity.Article, error)
	List(ctx context.Context, filter Filter, req PageRequest) (Page[*entity.Article], error)

	// InsertBatchDeduped inserts the given entries for feedID, silently
	// dropping any whose link already exists, and returns how many were
	// newly inserted.
	InsertBatchDeduped(ctx context.Context, feedID string, entries []entity.NewArticleInput) (int, error)

	// PendingArticles returns crawl candidates: status=pending,
	// is_locked=false, retry_count<max_retries, ordered by retry_count asc
	// then published_date desc.
	PendingArticles(ctx context.Context, limit int) ([]*entity.Article, error)

	// ClaimArticle performs the atomic lease acquisition.
	// Returns entity.ErrConflict if the article is already locked.
	ClaimArticle(ctx context.Context, articleID int64, crawlerID string, now time.Time) (*entity.Article, error)

	// SubmitCrawlResult applies the ok/failed transition for a
	// claim held by crawlerID. Returns entity.ErrConflict on lease mismatch.
	SubmitCrawlResult(ctx context.Context, result CrawlResult) (*entity.Article, error)

	// ResetArticle clears the lease, sets status=pending, retry_count=0, and
	// clears error_message.
	ResetArticle(ctx context.Context, articleID int64) error

	// PendingVectorization returns vectorization candidates:
	// vectorization_status=pending and content_id is not null, ordered by
	// published_date desc.
	PendingVectorization(ctx context.Context, limit int) ([]*entity.Article, error)

	// ClaimVectorization sets vectorization_status=in_progress; analogous to
	// ClaimArticle but over the vector-lease fields.
	ClaimVectorization(ctx context.Context, articleID int64) (*entity.Article, error)

	// UpdateVectorResult writes back the outcome of §4.6 step 6, or the
	// failure branch with a truncated error message.
	UpdateVectorResult(ctx context.Context, articleID int64, result VectorResult) error

	// UpdateSummaries writes generated_summary fields per §4.7's overwrite
	// policy; nilSummaryToNull indicates the original summary field should
	// be cleared because it failed the invalid-summary check.
	UpdateSummaries(ctx context.Context, articleID int64, chinese, english *string, clearSummary bool) error

	// ArticlesForDigest returns status=ok articles for feedID published
	// within [from, to], ordered by published_date desc, falling back to
	// created_at when published_date is null.
	ArticlesForDigest(ctx context.Context, feedID string, from, to time.Time) ([]*entity.Article, error)

	// FeedsWithOKArticlesOn returns the distinct feed ids that have at least
	// one status=ok article published within [from, to].
	FeedsWithOKArticlesOn(ctx context.Context, from, to time.Time) ([]string, error)

	// VectorizationStats returns per-status counts for the statistics
	// endpoint (C10).
	VectorizationStats(ctx context.Context) (map[entity.VectorizationStatus]int64, error)

	// ApplyProcessingStep writes back one step of the external step recorder
	// (§4.7): on content_saved success it sets status=ok, content_id, clears
	// the crawl lease, and clears error_message; on failure (either step) it
	// records error_message, clears the lease, and sets status=failed.
	// summary_generated success carries no payload of its own here and is
	// never passed to this method.
	ApplyProcessingStep(ctx context.Context, articleID int64, result ProcessingStepResult) error
}

// ProcessingStepResult is the input to ApplyProcessingStep.
type ProcessingStepResult struct {
	Step         string
	OK           bool
	ErrorMessage string
	ContentID    *int64
	Now          time.Time
}

// CrawlResult is the input to SubmitCrawlResult.
type CrawlResult struct {
	ArticleID    int64
	CrawlerID    string
	BatchID      string
	Status       entity.ArticleStatus
	HTMLContent  string
	TextContent  string
	ErrorMessage string
	ErrorType    string
	Stage        string
	MaxRetries   int
	Now          time.Time
}

// VectorResult is the input to UpdateVectorResult.
type VectorResult struct {
	OK              bool
	VectorID        string
	EmbeddingModel  string
	VectorDimension int
	ErrorMessage    string
	Now             time.Time
}

// ArticleContentRepository is the store adapter for the immutable
// ArticleContent payloads.
type ArticleContentRepository interface {
	Get(ctx context.Context, id int64) (*entity.ArticleContent, error)
	Create(ctx context.Context, content *entity.ArticleContent) (int64, error)
}
