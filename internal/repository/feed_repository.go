package repository

import (
	"context"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// PendingFeedsParams are the queue-selection parameters for FeedRepository.PendingFeeds.
type PendingFeedsParams struct {
	Limit                 int
	SkipRecentSuccess     bool
	SuccessIntervalMinutes int
	AutoDisableThreshold  int
	LeaseTimeout          time.Duration
	Now                   time.Time
}

// FeedRepository is the store adapter for Feed (C1), plus the atomic claim
// primitive C4 depends on for lease exclusivity.
type FeedRepository interface {
	Get(ctx context.Context, id string) (*entity.Feed, error)
	Create(ctx context.Context, feed *entity.Feed) error
	Update(ctx context.Context, feed *entity.Feed) error
	List(ctx context.Context, filter Filter, req PageRequest) (Page[*entity.Feed], error)

	// PendingFeeds returns the feeds eligible for sync dispatch, ordered by
	// the priority rule: never-synced first, then ascending
	// consecutive_failures, then NULL last_sync_at first, then oldest
	// last_sync_at first.
	PendingFeeds(ctx context.Context, params PendingFeedsParams) ([]*entity.Feed, error)

	// AutoDisableFailedFeeds flips every feed with consecutive_failures >=
	// threshold to is_active=false and returns the number disabled.
	AutoDisableFailedFeeds(ctx context.Context, threshold int) (int, error)

	// ClaimFeed performs the compare-and-set lease acquisition: it succeeds
	// only if the feed is active, below the
	// auto-disable threshold, and either unleased, lease-expired, or already
	// held by crawlerID. Returns entity.ErrConflict if the claim fails.
	ClaimFeed(ctx context.Context, feedID, crawlerID string, leaseTimeout time.Duration, now time.Time) (*entity.Feed, error)

	// SubmitSyncResult applies the ok/failed transition in a
	// single transaction: feed health fields, auto-disable check, and
	// (for ok) link-deduplicated article insertion, returning the inserted
	// article count.
	SubmitSyncResult(ctx context.Context, result SyncResult) (SubmitSyncResultOutcome, error)

	// ResetFailures clears consecutive_failures and, when reactivate is
	// true, sets is_active=true. feedID empty means all feeds.
	ResetFailures(ctx context.Context, feedID string, reactivate bool) error

	// Stats returns aggregate sync counters for the feed_sync_stats endpoint.
	Stats(ctx context.Context) (FeedSyncStats, error)
}

// SyncResult is the input to SubmitSyncResult.
type SyncResult struct {
	FeedID        string
	Status        entity.SyncStatus
	Articles      []entity.NewArticleInput
	ErrorMessage  string
	ErrorType     string
	ResponseStatus int
	EntriesFound  int
	AutoDisableThreshold int
	Now           time.Time
}

// SubmitSyncResultOutcome is what the ingestion call reports back to the
// worker.
type SubmitSyncResultOutcome struct {
	NewArticles         int
	ConsecutiveFailures int
	AutoDisabled        bool
}

// FeedSyncStats is the aggregate counters returned by GET feed_sync_stats.
type FeedSyncStats struct {
	TotalFeeds    int64
	ActiveFeeds   int64
	DisabledFeeds int64
	LeasedFeeds   int64
	FailingFeeds  int64
}

// FeedCategoryRepository is the store adapter for FeedCategory.
type FeedCategoryRepository interface {
	Get(ctx context.Context, id string) (*entity.FeedCategory, error)
	List(ctx context.Context) ([]*entity.FeedCategory, error)
	Create(ctx context.Context, category *entity.FeedCategory) error
}

// FeedSyncLogRepository is the append-only store adapter for FeedSyncLog.
type FeedSyncLogRepository interface {
	Append(ctx context.Context, log *entity.FeedSyncLog) error
	Get(ctx context.Context, syncID string) (*entity.FeedSyncLog, error)
	List(ctx context.Context, req PageRequest) (Page[*entity.FeedSyncLog], error)
}
