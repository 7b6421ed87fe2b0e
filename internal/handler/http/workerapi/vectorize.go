package workerapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/infra/pubsub"
	"github.com/ossfeed/coordinator/internal/usecase/vectorize"
)

// Vectorize exposes the vectorization surface atop a
// vectorize.Service. Unlike C4/C5, the coordinator itself performs the
// embedding call on ProcessArticleVectorization rather than the worker.
type Vectorize struct {
	Svc *vectorize.Service
	// Notifier is optional; see FeedSync.Notifier.
	Notifier *pubsub.Publisher
}

type pendingVectorizationRequest struct {
	Limit    int    `json:"limit"`
	WorkerID string `json:"worker_id"`
}

// Pending handles POST pending_vectorization.
func (h Vectorize) Pending(w http.ResponseWriter, r *http.Request) {
	var req pendingVectorizationRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	limit := req.Limit
	if limit <= 0 {
		limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	}
	if limit <= 0 {
		limit = 20
	}

	articles, err := h.Svc.GetArticlesForVectorization(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]articleDTO, len(articles))
	for i, a := range articles {
		out[i] = toArticleDTO(a)
	}
	respond.JSON(w, http.StatusOK, map[string]any{"articles": out})
}

type claimVectorizationRequest struct {
	ArticleID int64  `json:"article_id"`
	WorkerID  string `json:"worker_id"`
	Model     string `json:"model,omitempty"`
}

// ClaimTask handles POST claim_vectorization_task.
func (h Vectorize) ClaimTask(w http.ResponseWriter, r *http.Request) {
	var req claimVectorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	article, err := h.Svc.ClaimVectorizationTask(r.Context(), req.ArticleID)
	if err != nil {
		writeError(w, err)
		return
	}

	pubsub.Publish(r.Context(), h.Notifier, pubsub.SubjectVectorizationClaimed, pubsub.ClaimEvent{
		ID:        strconv.FormatInt(article.ID, 10),
		ClaimedBy: req.WorkerID,
		ClaimedAt: time.Now().UTC(),
	})

	respond.JSON(w, http.StatusOK, map[string]any{
		"article": toArticleDTO(article),
		"task_id": uuid.New().String(),
	})
}

type processVectorizationRequest struct {
	ArticleID    int64  `json:"article_id"`
	WorkerID     string `json:"worker_id,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	ProviderType string `json:"provider_type,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Process handles POST process_article_vectorization: the coordinator
// performs the embedding call itself and writes back the result.
func (h Vectorize) Process(w http.ResponseWriter, r *http.Request) {
	var req processVectorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	article, err := h.Svc.ClaimVectorizationTask(r.Context(), req.ArticleID)
	if err != nil {
		writeError(w, err)
		return
	}

	pubsub.Publish(r.Context(), h.Notifier, pubsub.SubjectVectorizationClaimed, pubsub.ClaimEvent{
		ID:        strconv.FormatInt(article.ID, 10),
		ClaimedBy: req.WorkerID,
		ClaimedAt: time.Now().UTC(),
	})

	if err := h.Svc.ProcessArticleVectorization(r.Context(), article); err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"article_id": req.ArticleID,
		"status":     "ok",
	})
}
