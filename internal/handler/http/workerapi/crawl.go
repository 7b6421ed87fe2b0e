package workerapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/infra/pubsub"
	"github.com/ossfeed/coordinator/internal/usecase/crawl"
)

var errMissingResetTarget = errors.New("either batch_id or article_id is required")

// Crawl exposes the crawl surface atop a crawl.Service.
type Crawl struct {
	Svc *crawl.Service
	// Notifier is optional; see FeedSync.Notifier.
	Notifier *pubsub.Publisher
}

type pendingArticleDTO struct {
	Article articleDTO           `json:"article"`
	Script  *extractionScriptDTO `json:"script"`
}

func toPendingArticleDTO(p crawl.PendingArticle) pendingArticleDTO {
	return pendingArticleDTO{Article: toArticleDTO(p.Article), Script: toScriptDTO(p.Script)}
}

// PendingArticles handles GET pending_articles.
func (h Crawl) PendingArticles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}

	pending, err := h.Svc.PendingArticles(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]pendingArticleDTO, len(pending))
	for i, p := range pending {
		out[i] = toPendingArticleDTO(p)
	}
	respond.JSON(w, http.StatusOK, map[string]any{"articles": out})
}

type claimArticleRequest struct {
	ArticleID int64  `json:"article_id"`
	CrawlerID string `json:"crawler_id"`
}

// ClaimArticle handles POST claim_article.
func (h Crawl) ClaimArticle(w http.ResponseWriter, r *http.Request) {
	var req claimArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	pending, err := h.Svc.ClaimArticle(r.Context(), req.ArticleID, req.CrawlerID)
	if err != nil {
		writeError(w, err)
		return
	}

	pubsub.Publish(r.Context(), h.Notifier, pubsub.SubjectArticleClaimed, pubsub.ClaimEvent{
		ID:        strconv.FormatInt(pending.Article.ID, 10),
		ClaimedBy: req.CrawlerID,
		ClaimedAt: time.Now().UTC(),
	})

	respond.JSON(w, http.StatusOK, toPendingArticleDTO(pending))
}

type crawlLogInputDTO struct {
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type submitCrawlResultRequest struct {
	ArticleID         int64              `json:"article_id"`
	CrawlerID         string             `json:"crawler_id"`
	BatchID           string             `json:"batch_id,omitempty"`
	Status            entity.ArticleStatus `json:"status"`
	HTMLContent       string             `json:"html_content,omitempty"`
	TextContent       string             `json:"text_content,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	ErrorType         string             `json:"error_type,omitempty"`
	Stage             string             `json:"stage,omitempty"`
	OriginalHTMLSize  int64              `json:"original_html_size,omitempty"`
	ProcessedHTMLSize int64              `json:"processed_html_size,omitempty"`
	ProcessedTextSize int64              `json:"processed_text_size,omitempty"`
	ContentHash       string             `json:"content_hash,omitempty"`
	ImageCount        int                `json:"image_count,omitempty"`
	LinkCount         int                `json:"link_count,omitempty"`
	VideoCount        int                `json:"video_count,omitempty"`
	Logs              []crawlLogInputDTO `json:"logs,omitempty"`
}

// SubmitResult handles POST submit_result.
func (h Crawl) SubmitResult(w http.ResponseWriter, r *http.Request) {
	var req submitCrawlResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	logs := make([]entity.CrawlLog, len(req.Logs))
	for i, l := range req.Logs {
		logs[i] = entity.CrawlLog{Stage: l.Stage, DurationMs: l.DurationMs, Message: l.Message}
	}

	outcome, err := h.Svc.SubmitCrawlResult(r.Context(), crawl.Submission{
		ArticleID:         req.ArticleID,
		CrawlerID:         req.CrawlerID,
		BatchID:           req.BatchID,
		Status:            req.Status,
		HTMLContent:       req.HTMLContent,
		TextContent:       req.TextContent,
		ErrorMessage:      req.ErrorMessage,
		ErrorType:         req.ErrorType,
		Stage:             req.Stage,
		OriginalHTMLSize:  req.OriginalHTMLSize,
		ProcessedHTMLSize: req.ProcessedHTMLSize,
		ProcessedTextSize: req.ProcessedTextSize,
		ContentHash:       req.ContentHash,
		ImageCount:        req.ImageCount,
		LinkCount:         req.LinkCount,
		VideoCount:        req.VideoCount,
		Logs:              logs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"status":     string(outcome.Status),
		"content_id": outcome.ContentID,
		"batch_id":   outcome.BatchID,
	})
}

// Logs handles GET logs.
func (h Crawl) Logs(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch_id")
	if batchID == "" {
		respond.SafeError(w, http.StatusBadRequest, errMissingBatchID)
		return
	}
	logs, err := h.Svc.Logs(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// Stats handles GET stats.
func (h Crawl) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

type resetBatchRequest struct {
	BatchID   string `json:"batch_id,omitempty"`
	ArticleID int64  `json:"article_id,omitempty"`
}

// ResetBatch handles POST reset_batch.
func (h Crawl) ResetBatch(w http.ResponseWriter, r *http.Request) {
	var req resetBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	// A batch reset re-queues its article itself (without touching
	// retry_count); article_id is the standalone full reset, which also
	// zeroes retry_count.
	switch {
	case req.BatchID != "":
		if err := h.Svc.ResetBatch(r.Context(), req.BatchID); err != nil {
			writeError(w, err)
			return
		}
	case req.ArticleID != 0:
		if err := h.Svc.ResetArticle(r.Context(), req.ArticleID); err != nil {
			writeError(w, err)
			return
		}
	default:
		respond.SafeError(w, http.StatusBadRequest, errMissingResetTarget)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"reset": true})
}
