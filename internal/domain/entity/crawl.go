package entity

import "time"

// CrawlBatch records one completed crawl attempt for an article. Batches are
// append-only; a reset deletes a batch's logs but never the batch row itself.
type CrawlBatch struct {
	BatchID              string
	ArticleID             int64
	FeedID                string
	CrawlerID             string
	FinalStatus           ArticleStatus
	ErrorStage            string
	ErrorType             string
	ErrorMessage          string
	OriginalHTMLSize      int64
	ProcessedHTMLSize     int64
	ProcessedTextSize     int64
	ContentHash           string
	StartedAt             time.Time
	EndedAt               time.Time
	TotalProcessingTimeMs int64
	MaxMemoryUsageBytes   int64
	AvgCPUUsagePercent    float64
	ImageCount            int
	LinkCount             int
	VideoCount            int
}

// CrawlLog is a sub-stage timing entry belonging to a CrawlBatch.
type CrawlLog struct {
	ID         int64
	BatchID    string
	Stage      string
	DurationMs int64
	Message    string
	CreatedAt  time.Time
}

// FeedExtractionScript is an opaque extraction script shipped to workers for
// a given feed. At most one version per feed may be published; publishing a
// new version clears the flag on the previous published row.
type FeedExtractionScript struct {
	ID          int64
	FeedID      string
	Version     int
	Script      string
	Description string
	IsPublished bool
	CreatedAt   time.Time
}

// VectorizationTask is bookkeeping for one vector-store write attempt.
type VectorizationTask struct {
	BatchID        string
	ArticleID      int64
	Total          int
	Processed      int
	Success        int
	Failed         int
	StartedAt      time.Time
	EndedAt        *time.Time
	EmbeddingModel string
	Status         VectorizationStatus
	ErrorMessage   string
}

// FeedSyncLog is a summary row for one feed-sync run across however many
// feeds were dispatched in it.
type FeedSyncLog struct {
	SyncID        string
	TotalFeeds    int
	SyncedFeeds   int
	FailedFeeds   int
	TotalArticles int
	Status        string
	StartTime     time.Time
	EndTime       *time.Time
	TotalTimeMs   int64
	Details       string
	TriggeredBy   string
}
