// Package crawl implements the crawl scheduler (C5): handing out
// per-article extraction work, ingesting a worker's result, and appending
// the append-only batch/log bookkeeping trail.
package crawl

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
	MaxRetries int
}

// DefaultConfig returns the crawl scheduler's default tunables.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Summarizer is the subset of the summarization engine (C7) the crawl
// scheduler depends on to run inline best-effort summarization on a
// successful extraction. A nil Summarizer disables the inline call.
type Summarizer interface {
	GenerateArticleSummaries(ctx context.Context, articleID int64) error
}

// ContentDeriver fills in fields a worker omitted from an ok submission,
// computed from the submitted HTML: a readable text rendering and the
// embedded-media counts. A nil ContentDeriver disables derivation.
type ContentDeriver interface {
	DeriveText(htmlContent, pageURL string) (string, error)
	CountMedia(htmlContent string) (images, links, videos int, err error)
}

// Service orchestrates the C5 surface atop ArticleRepository's atomic claim
// primitives, FeedExtractionScriptRepository, and CrawlBatchRepository.
type Service struct {
	Articles   repository.ArticleRepository
	Scripts    repository.FeedExtractionScriptRepository
	Batches    repository.CrawlBatchRepository
	Summarizer Summarizer
	Deriver    ContentDeriver
	Config     Config
	now        func() time.Time
}

// NewService constructs a Service with the given dependencies and config.
func NewService(articles repository.ArticleRepository, scripts repository.FeedExtractionScriptRepository, batches repository.CrawlBatchRepository, summarizer Summarizer, cfg Config) *Service {
	return &Service{Articles: articles, Scripts: scripts, Batches: batches, Summarizer: summarizer, Config: cfg, now: time.Now}
}

// PendingArticle pairs a crawl candidate with the published extraction
// script for its feed. Script is nil when the feed has none, which the
// worker treats as "use default extraction".
type PendingArticle struct {
	Article *entity.Article
	Script  *entity.FeedExtractionScript
}

// PendingArticles returns crawl candidates, with each
// article's published extraction script memoized for the request.
func (s *Service) PendingArticles(ctx context.Context, limit int) ([]PendingArticle, error) {
	articles, err := s.Articles.PendingArticles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("crawl: pending articles: %w", err)
	}

	feedIDs := make([]string, 0, len(articles))
	seen := make(map[string]bool, len(articles))
	for _, a := range articles {
		if !seen[a.FeedID] {
			seen[a.FeedID] = true
			feedIDs = append(feedIDs, a.FeedID)
		}
	}

	scripts, err := s.Scripts.PublishedBatch(ctx, feedIDs)
	if err != nil {
		return nil, fmt.Errorf("crawl: published scripts: %w", err)
	}

	out := make([]PendingArticle, len(articles))
	for i, a := range articles {
		out[i] = PendingArticle{Article: a, Script: scripts[a.FeedID]}
	}
	return out, nil
}

// ClaimArticle grants crawlerID an exclusive lease on articleID and
// attaches its feed's published extraction script.
func (s *Service) ClaimArticle(ctx context.Context, articleID int64, crawlerID string) (PendingArticle, error) {
	article, err := s.Articles.ClaimArticle(ctx, articleID, crawlerID, s.now())
	if err != nil {
		return PendingArticle{}, fmt.Errorf("crawl: claim article %d: %w", articleID, err)
	}
	script, err := s.Scripts.Published(ctx, article.FeedID)
	if err != nil {
		return PendingArticle{}, fmt.Errorf("crawl: published script for feed %s: %w", article.FeedID, err)
	}
	return PendingArticle{Article: article, Script: script}, nil
}

// Submission is a worker's full crawl result report, carrying both the
// article-state transition and the batch/log bookkeeping for it.
type Submission struct {
	ArticleID    int64
	CrawlerID    string
	BatchID      string
	Status       entity.ArticleStatus
	HTMLContent  string
	TextContent  string
	ErrorMessage string
	ErrorType    string
	Stage        string

	OriginalHTMLSize  int64
	ProcessedHTMLSize int64
	ProcessedTextSize int64
	ContentHash       string
	ImageCount        int
	LinkCount         int
	VideoCount        int
	StartedAt         time.Time
	EndedAt           time.Time
	Logs              []entity.CrawlLog
}

// Outcome is the result of SubmitCrawlResult.
type Outcome struct {
	Status    entity.ArticleStatus
	ContentID *int64
	BatchID   string
}

// SubmitCrawlResult applies the ok/failed transition, appends
// the CrawlBatch/CrawlLog bookkeeping row, and on success runs inline
// best-effort summarization: a summarization failure never fails the
// submit, since the crawl itself already succeeded.
func (s *Service) SubmitCrawlResult(ctx context.Context, sub Submission) (Outcome, error) {
	if sub.BatchID == "" {
		sub.BatchID = uuid.New().String()
	}
	now := s.now()

	if sub.Status == entity.ArticleStatusOK && sub.HTMLContent != "" && s.Deriver != nil {
		s.deriveOmittedFields(ctx, &sub)
	}

	article, err := s.Articles.SubmitCrawlResult(ctx, repository.CrawlResult{
		ArticleID:    sub.ArticleID,
		CrawlerID:    sub.CrawlerID,
		BatchID:      sub.BatchID,
		Status:       sub.Status,
		HTMLContent:  sub.HTMLContent,
		TextContent:  sub.TextContent,
		ErrorMessage: sub.ErrorMessage,
		ErrorType:    sub.ErrorType,
		Stage:        sub.Stage,
		MaxRetries:   s.Config.MaxRetries,
		Now:          now,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("crawl: submit result for article %d: %w", sub.ArticleID, err)
	}

	batch := &entity.CrawlBatch{
		BatchID:               sub.BatchID,
		ArticleID:             sub.ArticleID,
		FeedID:                article.FeedID,
		CrawlerID:             sub.CrawlerID,
		FinalStatus:           sub.Status,
		ErrorStage:            sub.Stage,
		ErrorType:             sub.ErrorType,
		ErrorMessage:          sub.ErrorMessage,
		OriginalHTMLSize:      sub.OriginalHTMLSize,
		ProcessedHTMLSize:     sub.ProcessedHTMLSize,
		ProcessedTextSize:     sub.ProcessedTextSize,
		ContentHash:           sub.ContentHash,
		StartedAt:             sub.StartedAt,
		EndedAt:               sub.EndedAt,
		TotalProcessingTimeMs: sub.EndedAt.Sub(sub.StartedAt).Milliseconds(),
		ImageCount:            sub.ImageCount,
		LinkCount:             sub.LinkCount,
		VideoCount:            sub.VideoCount,
	}
	if err := s.Batches.Append(ctx, batch, sub.Logs); err != nil {
		return Outcome{}, fmt.Errorf("crawl: append batch %s: %w", sub.BatchID, err)
	}

	if sub.Status == entity.ArticleStatusOK && s.Summarizer != nil {
		if err := s.Summarizer.GenerateArticleSummaries(ctx, sub.ArticleID); err != nil {
			slog.WarnContext(ctx, "inline summarization after crawl success failed",
				slog.Int64("article_id", sub.ArticleID),
				slog.String("error", err.Error()))
		}
	}

	return Outcome{Status: article.Status, ContentID: article.ContentID, BatchID: sub.BatchID}, nil
}

// deriveOmittedFields computes text content and media counts from the
// submitted HTML when the worker left them out. Derivation is
// best-effort: a failure leaves the submission as the worker sent it.
func (s *Service) deriveOmittedFields(ctx context.Context, sub *Submission) {
	if sub.TextContent == "" {
		pageURL := ""
		if article, err := s.Articles.Get(ctx, sub.ArticleID); err == nil && article != nil {
			pageURL = article.Link
		}
		text, err := s.Deriver.DeriveText(sub.HTMLContent, pageURL)
		if err != nil {
			slog.WarnContext(ctx, "text derivation from submitted html failed",
				slog.Int64("article_id", sub.ArticleID),
				slog.String("error", err.Error()))
		} else {
			sub.TextContent = text
			sub.ProcessedTextSize = int64(len(text))
		}
	}

	if sub.ImageCount == 0 && sub.LinkCount == 0 && sub.VideoCount == 0 {
		images, links, videos, err := s.Deriver.CountMedia(sub.HTMLContent)
		if err != nil {
			slog.WarnContext(ctx, "media count derivation from submitted html failed",
				slog.Int64("article_id", sub.ArticleID),
				slog.String("error", err.Error()))
			return
		}
		sub.ImageCount, sub.LinkCount, sub.VideoCount = images, links, videos
	}
}

// ResetArticle clears an article's lease and status, the explicit-reset
// escape from a terminal failure.
func (s *Service) ResetArticle(ctx context.Context, articleID int64) error {
	if err := s.Articles.ResetArticle(ctx, articleID); err != nil {
		return fmt.Errorf("crawl: reset article %d: %w", articleID, err)
	}
	return nil
}

// ResetBatch re-queues the batch's article (lease and error cleared,
// status back to pending, retry_count untouched) and deletes the batch's
// logs.
func (s *Service) ResetBatch(ctx context.Context, batchID string) error {
	if err := s.Batches.ResetBatch(ctx, batchID); err != nil {
		return fmt.Errorf("crawl: reset batch %s: %w", batchID, err)
	}
	return nil
}

// Logs returns the sub-stage timing entries for a batch.
func (s *Service) Logs(ctx context.Context, batchID string) ([]entity.CrawlLog, error) {
	logs, err := s.Batches.Logs(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("crawl: logs for batch %s: %w", batchID, err)
	}
	return logs, nil
}

// Stats returns the crawl surface's aggregate counters.
func (s *Service) Stats(ctx context.Context) (repository.CrawlStats, error) {
	stats, err := s.Batches.Stats(ctx)
	if err != nil {
		return repository.CrawlStats{}, fmt.Errorf("crawl: stats: %w", err)
	}
	return stats, nil
}
