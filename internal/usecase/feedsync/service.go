// Package feedsync implements the feed-sync scheduler (C4): selecting feeds
// due for a sync, granting crawler workers an exclusive lease on one, and
// recording the ok/failed outcome they report back.
package feedsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

// Config holds the scheduler's tunables.
type Config struct {
	LeaseTimeout           time.Duration
	AutoDisableThreshold   int
	SuccessIntervalMinutes int
}

// DefaultConfig returns the scheduler's default tunables.
func DefaultConfig() Config {
	return Config{
		LeaseTimeout:           30 * time.Minute,
		AutoDisableThreshold:   20,
		SuccessIntervalMinutes: 30,
	}
}

// Service orchestrates feed-sync dispatch atop the repository's atomic
// claim/submit primitives. It holds no retry or circuit-breaking logic of
// its own: those belong to the worker that actually fetches feeds, not the
// coordinator that schedules the work.
type Service struct {
	Repo     repository.FeedRepository
	SyncLogs repository.FeedSyncLogRepository // optional; nil disables run logging
	Config   Config
	now      func() time.Time
}

// NewService constructs a Service with the given dependencies and config.
func NewService(repo repository.FeedRepository, syncLogs repository.FeedSyncLogRepository, cfg Config) *Service {
	return &Service{Repo: repo, SyncLogs: syncLogs, Config: cfg, now: time.Now}
}

// PendingFeeds returns feeds eligible for sync dispatch, in priority
// ordering (never-synced first, then fewest consecutive failures, then
// oldest last_sync_at).
func (s *Service) PendingFeeds(ctx context.Context, limit int, skipRecentSuccess bool) ([]*entity.Feed, error) {
	feeds, err := s.Repo.PendingFeeds(ctx, repository.PendingFeedsParams{
		Limit:                  limit,
		SkipRecentSuccess:      skipRecentSuccess,
		SuccessIntervalMinutes: s.Config.SuccessIntervalMinutes,
		AutoDisableThreshold:   s.Config.AutoDisableThreshold,
		LeaseTimeout:           s.Config.LeaseTimeout,
		Now:                    s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("feedsync: pending feeds: %w", err)
	}
	return feeds, nil
}

// AutoDisableFailedFeeds flips every feed whose consecutive_failures has
// reached the configured threshold to inactive, and returns how many were
// disabled. Safe to call on a schedule independent of a sync cycle: a feed
// can cross the threshold without anyone calling SubmitFeedResult again if
// the threshold is lowered via config.
func (s *Service) AutoDisableFailedFeeds(ctx context.Context) (int, error) {
	n, err := s.Repo.AutoDisableFailedFeeds(ctx, s.Config.AutoDisableThreshold)
	if err != nil {
		return 0, fmt.Errorf("feedsync: auto-disable failed feeds: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "auto-disabled feeds past failure threshold",
			slog.Int("count", n),
			slog.Int("threshold", s.Config.AutoDisableThreshold))
	}
	return n, nil
}

// ClaimFeed grants crawlerID an exclusive lease on feedID using
// compare-and-set semantics. Returns entity.ErrConflict if the feed is
// inactive, already leased by someone else within the lease timeout, or
// already at/above the auto-disable threshold.
func (s *Service) ClaimFeed(ctx context.Context, feedID, crawlerID string) (*entity.Feed, error) {
	feed, err := s.Repo.ClaimFeed(ctx, feedID, crawlerID, s.Config.LeaseTimeout, s.now())
	if err != nil {
		return nil, fmt.Errorf("feedsync: claim feed %s: %w", feedID, err)
	}
	return feed, nil
}

// SubmitFeedResult records a crawler worker's sync outcome for a feed,
// applying the ok/failed transition (health fields, auto-disable check,
// and link-deduplicated article insertion) in one transaction.
func (s *Service) SubmitFeedResult(ctx context.Context, result repository.SyncResult) (repository.SubmitSyncResultOutcome, error) {
	result.AutoDisableThreshold = s.Config.AutoDisableThreshold
	if result.Now.IsZero() {
		result.Now = s.now()
	}

	outcome, err := s.Repo.SubmitSyncResult(ctx, result)
	if err != nil {
		return repository.SubmitSyncResultOutcome{}, fmt.Errorf("feedsync: submit sync result for feed %s: %w", result.FeedID, err)
	}

	slog.InfoContext(ctx, "feed sync result recorded",
		slog.String("feed_id", result.FeedID),
		slog.String("status", string(result.Status)),
		slog.Int("new_articles", outcome.NewArticles),
		slog.Int("consecutive_failures", outcome.ConsecutiveFailures),
		slog.Bool("auto_disabled", outcome.AutoDisabled))

	return outcome, nil
}

// ResetFailures clears consecutive_failures for feedID (or every feed, if
// feedID is empty) and, when reactivate is true, reactivates it.
func (s *Service) ResetFailures(ctx context.Context, feedID string, reactivate bool) error {
	if err := s.Repo.ResetFailures(ctx, feedID, reactivate); err != nil {
		return fmt.Errorf("feedsync: reset failures for feed %q: %w", feedID, err)
	}
	return nil
}

// Stats returns the aggregate sync counters for the feed_sync_stats endpoint.
func (s *Service) Stats(ctx context.Context) (repository.FeedSyncStats, error) {
	stats, err := s.Repo.Stats(ctx)
	if err != nil {
		return repository.FeedSyncStats{}, fmt.Errorf("feedsync: stats: %w", err)
	}
	return stats, nil
}

// RecordSyncRun appends a completed dispatch cycle's summary to the
// append-only sync log, generating a SyncID if the caller didn't set one.
// No-op if no FeedSyncLogRepository is configured, since run logging is an
// observability extra, not load-bearing for the scheduler itself.
func (s *Service) RecordSyncRun(ctx context.Context, log *entity.FeedSyncLog) error {
	if s.SyncLogs == nil {
		return nil
	}
	if log.SyncID == "" {
		log.SyncID = uuid.New().String()
	}
	if err := s.SyncLogs.Append(ctx, log); err != nil {
		return fmt.Errorf("feedsync: record sync run: %w", err)
	}
	return nil
}
