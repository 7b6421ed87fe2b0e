package workerapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/infra/pubsub"
	"github.com/ossfeed/coordinator/internal/repository"
	"github.com/ossfeed/coordinator/internal/usecase/feedsync"
)

// FeedSync exposes the feed-sync surface atop a feedsync.Service.
type FeedSync struct {
	Svc *feedsync.Service
	// Notifier is optional: a nil value skips the NATS side channel and
	// falls back to HTTP-only claim dispatch, the only contractual path.
	Notifier *pubsub.Publisher
}

type pendingFeedsResponse struct {
	Feeds             []feedDTO `json:"feeds"`
	DisabledFeedsCount int      `json:"disabled_feeds_count"`
	Timestamp         string    `json:"timestamp"`
}

// PendingFeeds handles GET pending_feeds.
func (h FeedSync) PendingFeeds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	skipRecentSuccess := q.Get("skip_recent_success") == "true"

	disabled, err := h.Svc.AutoDisableFailedFeeds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	feeds, err := h.Svc.PendingFeeds(r.Context(), limit, skipRecentSuccess)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]feedDTO, len(feeds))
	for i, f := range feeds {
		out[i] = toFeedDTO(f)
	}
	respond.JSON(w, http.StatusOK, pendingFeedsResponse{
		Feeds:              out,
		DisabledFeedsCount: disabled,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	})
}

type claimFeedRequest struct {
	FeedID    string `json:"feed_id"`
	CrawlerID string `json:"crawler_id"`
}

type claimFeedResponse struct {
	Feed      feedDTO `json:"feed"`
	ClaimedAt string  `json:"claimed_at"`
}

// ClaimFeed handles POST claim_feed.
func (h FeedSync) ClaimFeed(w http.ResponseWriter, r *http.Request) {
	var req claimFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	feed, err := h.Svc.ClaimFeed(r.Context(), req.FeedID, req.CrawlerID)
	if err != nil {
		writeError(w, err)
		return
	}

	pubsub.Publish(r.Context(), h.Notifier, pubsub.SubjectFeedClaimed, pubsub.ClaimEvent{
		ID:        feed.ID,
		ClaimedBy: req.CrawlerID,
		ClaimedAt: time.Now().UTC(),
	})

	respond.JSON(w, http.StatusOK, claimFeedResponse{
		Feed:      toFeedDTO(feed),
		ClaimedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

type submitFeedResultRequest struct {
	FeedID         string            `json:"feed_id"`
	Status         entity.SyncStatus `json:"status"`
	Articles       []articleInputDTO `json:"articles,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ErrorType      string            `json:"error_type,omitempty"`
	ResponseStatus int               `json:"response_status,omitempty"`
	EntriesFound   int               `json:"entries_found,omitempty"`
}

type submitFeedResultResponse struct {
	SyncID              string `json:"sync_id"`
	Status              string `json:"status"`
	NewArticles         int    `json:"new_articles"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	AutoDisabled        bool   `json:"auto_disabled"`
	Message             string `json:"message,omitempty"`
}

// SubmitFeedResult handles POST submit_feed_result.
func (h FeedSync) SubmitFeedResult(w http.ResponseWriter, r *http.Request) {
	var req submitFeedResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	articles := make([]entity.NewArticleInput, len(req.Articles))
	for i, a := range req.Articles {
		articles[i] = a.toEntity()
	}

	outcome, err := h.Svc.SubmitFeedResult(r.Context(), repository.SyncResult{
		FeedID:         req.FeedID,
		Status:         req.Status,
		Articles:       articles,
		ErrorMessage:   req.ErrorMessage,
		ErrorType:      req.ErrorType,
		ResponseStatus: req.ResponseStatus,
		EntriesFound:   req.EntriesFound,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	message := "sync recorded"
	if outcome.AutoDisabled {
		message = "feed auto-disabled after exceeding failure threshold"
	}
	respond.JSON(w, http.StatusOK, submitFeedResultResponse{
		Status:              string(req.Status),
		NewArticles:         outcome.NewArticles,
		ConsecutiveFailures: outcome.ConsecutiveFailures,
		AutoDisabled:        outcome.AutoDisabled,
		Message:             message,
	})
}

type feedSyncStatsResponse struct {
	TotalFeeds    int64 `json:"total_feeds"`
	ActiveFeeds   int64 `json:"active_feeds"`
	DisabledFeeds int64 `json:"disabled_feeds"`
	LeasedFeeds   int64 `json:"leased_feeds"`
	FailingFeeds  int64 `json:"failing_feeds"`
}

// Stats handles GET feed_sync_stats.
func (h FeedSync) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, feedSyncStatsResponse(stats))
}

type resetFeedFailuresRequest struct {
	FeedID     string `json:"feed_id,omitempty"`
	Reactivate bool   `json:"reactivate"`
}

// ResetFailures handles POST reset_feed_failures.
func (h FeedSync) ResetFailures(w http.ResponseWriter, r *http.Request) {
	var req resetFeedFailuresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.ResetFailures(r.Context(), req.FeedID, req.Reactivate); err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"reset": true, "feed_id": req.FeedID, "reactivated": req.Reactivate})
}
