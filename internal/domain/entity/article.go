package entity

import "time"

// ArticleStatus is the crawl status of an article.
type ArticleStatus string

const (
	ArticleStatusPending ArticleStatus = "pending"
	ArticleStatusOK      ArticleStatus = "ok"
	ArticleStatusFailed  ArticleStatus = "failed"
)

// VectorizationStatus is the embedding status of an article.
type VectorizationStatus string

const (
	VectorizationStatusPending    VectorizationStatus = "pending"
	VectorizationStatusInProgress VectorizationStatus = "in_progress"
	VectorizationStatusOK         VectorizationStatus = "ok"
	VectorizationStatusFailed     VectorizationStatus = "failed"
)

// CrawlLease tracks exclusive ownership of an article's content extraction.
type CrawlLease struct {
	IsLocked      bool
	LockTimestamp *time.Time
	CrawlerID     string
}

// VectorBlock tracks an article's embedding lifecycle.
type VectorBlock struct {
	IsVectorized        bool
	VectorID            string
	VectorizedAt        *time.Time
	EmbeddingModel       string
	VectorDimension     int
	VectorizationStatus VectorizationStatus
	VectorizationError  string
}

// Article is a single RSS entry.
type Article struct {
	ID             int64
	FeedID         string
	Link           string
	Title          string
	Summary        string
	ChineseSummary  *string
	EnglishSummary  *string
	ThumbnailURL   string
	PublishedDate  *time.Time
	Status         ArticleStatus
	Lease          CrawlLease
	RetryCount     int
	MaxRetries     int
	ErrorMessage   string
	ContentID      *int64
	Vector         VectorBlock
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewArticleInput is the shape of an incoming feed-sync entry before
// deduplication and insertion.
type NewArticleInput struct {
	Title         string
	Link          string
	Summary       string
	PublishedDate *time.Time
	ThumbnailURL  string
}

// Validate checks that the article carries the minimum fields required for
// insertion: a link and a title.
func (a *Article) Validate() error {
	if a.Link == "" {
		return &ValidationError{Field: "link", Message: "link is required"}
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// IsLeaseExpired reports whether the article's crawl lease, if held, has
// exceeded the given timeout.
func (a *Article) IsLeaseExpired(now time.Time, timeout time.Duration) bool {
	if !a.Lease.IsLocked || a.Lease.LockTimestamp == nil {
		return true
	}
	return a.Lease.LockTimestamp.Add(timeout).Before(now)
}

// IsTerminalFailure reports whether the article has exhausted its retry
// budget and requires an explicit reset to re-enter the crawl queue.
func (a *Article) IsTerminalFailure() bool {
	return a.Status == ArticleStatusFailed && a.RetryCount >= a.MaxRetries
}

// ArticleContent is the immutable post-extraction payload for an article.
// A reset allocates a new row rather than mutating an existing one.
type ArticleContent struct {
	ID          int64
	HTMLContent string
	TextContent string
	CreatedAt   time.Time
}
