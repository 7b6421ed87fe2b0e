// Package entity defines the core domain entities and validation logic for the
// coordinator. It contains the fundamental business objects — Feed, Article,
// and their supporting records — along with validation rules and sentinel
// errors shared across the persistence and usecase layers.
package entity

import "time"

// SyncStatus is the outcome of the most recent feed-sync attempt.
type SyncStatus string

const (
	SyncStatusNone   SyncStatus = "none"
	SyncStatusOK     SyncStatus = "ok"
	SyncStatusFailed SyncStatus = "failed"
)

// SyncHealth tracks a feed's sync lease and failure accounting. It is
// embedded in Feed rather than normalized out because every read of a Feed
// needs it to decide queue eligibility.
type SyncHealth struct {
	LastSyncAt           *time.Time
	LastSuccessfulSyncAt *time.Time
	LastSyncStatus       SyncStatus
	ConsecutiveFailures  int
	LastSyncError        string
	LastSyncCrawlerID    string
	LastSyncStartedAt    *time.Time
}

// CrawlHints are per-feed directives forwarded to workers; the coordinator
// never interprets them.
type CrawlHints struct {
	CrawlWithJS    bool
	CrawlDelaySec  int
	CustomHeaders  map[string]string
	UseProxy       bool
}

// Feed is an RSS subscription.
type Feed struct {
	ID          string
	URL         string
	CategoryID  string
	Title       string
	Description string
	Logo        string
	IsActive    bool
	Health      SyncHealth
	Hints       CrawlHints
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks that the feed has a well-formed URL and a non-empty title.
func (f *Feed) Validate() error {
	if f.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if err := ValidateURL(f.URL); err != nil {
		return err
	}
	return nil
}

// IsLeaseExpired reports whether the feed's current sync lease, if any, has
// passed the given timeout relative to now.
func (f *Feed) IsLeaseExpired(now time.Time, timeout time.Duration) bool {
	if f.Health.LastSyncCrawlerID == "" || f.Health.LastSyncStartedAt == nil {
		return true
	}
	return f.Health.LastSyncStartedAt.Add(timeout).Before(now)
}

// ShouldAutoDisable reports whether the feed has accumulated enough
// consecutive failures to be forced inactive.
func (f *Feed) ShouldAutoDisable(threshold int) bool {
	return f.Health.ConsecutiveFailures >= threshold
}

// FeedCategory groups feeds for display and filtering purposes.
type FeedCategory struct {
	ID        string
	Name      string
	SortOrder int
	CreatedAt time.Time
}
