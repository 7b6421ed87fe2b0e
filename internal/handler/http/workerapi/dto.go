// Package workerapi implements the worker-facing RPC surfaces: feed-sync,
// crawl, vectorization, and daily-summary dispatch endpoints consumed by
// external crawler/embedding/digest workers.
package workerapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/handler/http/respond"
)

var errMissingBatchID = errors.New("batch_id is required")

// kindStatus maps a domain error Kind to its HTTP status code.
func kindStatus(kind entity.Kind) int {
	switch kind {
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindConflict:
		return http.StatusConflict
	case entity.KindRateLimited:
		return http.StatusTooManyRequests
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindProviderFatal, entity.KindProviderTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err and writes the corresponding JSON error response.
func writeError(w http.ResponseWriter, err error) {
	respond.SafeErrorV2(w, kindStatus(entity.ClassifyKind(err)), err)
}

func timePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

type feedDTO struct {
	ID                  string  `json:"feed_id"`
	URL                 string  `json:"url"`
	Title               string  `json:"title"`
	CategoryID          string  `json:"category_id,omitempty"`
	IsActive            bool    `json:"is_active"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastSyncStatus      string  `json:"last_sync_status"`
	LastSyncAt          *string `json:"last_sync_at,omitempty"`
	CrawlWithJS         bool    `json:"crawl_with_js"`
	CrawlDelaySec       int     `json:"crawl_delay_sec"`
	UseProxy            bool    `json:"use_proxy"`
}

func toFeedDTO(f *entity.Feed) feedDTO {
	var lastSync *string
	if f.Health.LastSyncAt != nil {
		lastSync = timePtr(*f.Health.LastSyncAt)
	}
	return feedDTO{
		ID:                  f.ID,
		URL:                 f.URL,
		Title:               f.Title,
		CategoryID:          f.CategoryID,
		IsActive:            f.IsActive,
		ConsecutiveFailures: f.Health.ConsecutiveFailures,
		LastSyncStatus:      string(f.Health.LastSyncStatus),
		LastSyncAt:          lastSync,
		CrawlWithJS:         f.Hints.CrawlWithJS,
		CrawlDelaySec:       f.Hints.CrawlDelaySec,
		UseProxy:            f.Hints.UseProxy,
	}
}

type articleInputDTO struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Summary       string     `json:"summary"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
}

func (d articleInputDTO) toEntity() entity.NewArticleInput {
	return entity.NewArticleInput{
		Title:         d.Title,
		Link:          d.Link,
		Summary:       d.Summary,
		PublishedDate: d.PublishedDate,
		ThumbnailURL:  d.ThumbnailURL,
	}
}

type articleDTO struct {
	ID            int64   `json:"article_id"`
	FeedID        string  `json:"feed_id"`
	Link          string  `json:"link"`
	Title         string  `json:"title"`
	Summary       string  `json:"summary"`
	ThumbnailURL  string  `json:"thumbnail_url,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
	Status        string  `json:"status"`
	RetryCount    int     `json:"retry_count"`
}

func toArticleDTO(a *entity.Article) articleDTO {
	var published *string
	if a.PublishedDate != nil {
		published = timePtr(*a.PublishedDate)
	}
	return articleDTO{
		ID:            a.ID,
		FeedID:        a.FeedID,
		Link:          a.Link,
		Title:         a.Title,
		Summary:       a.Summary,
		ThumbnailURL:  a.ThumbnailURL,
		PublishedDate: published,
		Status:        string(a.Status),
		RetryCount:    a.RetryCount,
	}
}

type extractionScriptDTO struct {
	Version     int    `json:"version"`
	Script      string `json:"script"`
	Description string `json:"description,omitempty"`
}

func toScriptDTO(s *entity.FeedExtractionScript) *extractionScriptDTO {
	if s == nil {
		return nil
	}
	return &extractionScriptDTO{Version: s.Version, Script: s.Script, Description: s.Description}
}
