// Package consumerapi implements the consumer-facing surfaces:
// article list/detail with similar-article attachments, text search, and
// the assistant summarize/translate streams.
package consumerapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ossfeed/coordinator/internal/common/pagination"
	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/repository"
	"github.com/ossfeed/coordinator/internal/usecase/retrieval"
)

// Retrieval exposes C10 (article detail/search/statistics) over HTTP.
type Retrieval struct {
	Svc *retrieval.Service
}

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

func writeError(w http.ResponseWriter, err error) {
	respond.SafeErrorV2(w, kindStatus(entity.ClassifyKind(err)), err)
}

type similarArticleDTO struct {
	ArticleID  int64   `json:"article_id"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

type articleDetailResponse struct {
	ArticleID       int64               `json:"article_id"`
	FeedID          string              `json:"feed_id"`
	Title           string              `json:"title"`
	Link            string              `json:"link"`
	Summary         string              `json:"summary"`
	ChineseSummary  *string             `json:"chinese_summary,omitempty"`
	EnglishSummary  *string             `json:"english_summary,omitempty"`
	ThumbnailURL    string              `json:"thumbnail_url,omitempty"`
	Status          string              `json:"status"`
	IsVectorized    bool                `json:"is_vectorized"`
	SimilarArticles []similarArticleDTO `json:"similar_articles"`
}

func toDetailResponse(detail *retrieval.ArticleDetail) articleDetailResponse {
	a := detail.Article
	similar := make([]similarArticleDTO, len(detail.Similar))
	for i, s := range detail.Similar {
		similar[i] = similarArticleDTO{
			ArticleID:  s.Article.ID,
			Title:      s.Article.Title,
			Summary:    s.Article.Summary,
			Similarity: s.Similarity,
		}
	}
	return articleDetailResponse{
		ArticleID:       a.ID,
		FeedID:          a.FeedID,
		Title:           a.Title,
		Link:            a.Link,
		Summary:         a.Summary,
		ChineseSummary:  a.ChineseSummary,
		EnglishSummary:  a.EnglishSummary,
		ThumbnailURL:    a.ThumbnailURL,
		Status:          string(a.Status),
		IsVectorized:    a.Vector.IsVectorized,
		SimilarArticles: similar,
	}
}

// Detail handles the article-detail read: relational row plus, when
// vectorized, up to 5 similar articles.
func (h Retrieval) Detail(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	detail, err := h.Svc.ArticleWithSimilar(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDetailResponse(detail))
}

// ListArticles handles the plain paginated article listing alongside
// detail/search.
type ListArticles struct {
	Articles   repository.ArticleRepository
	Pagination pagination.Config
}

func (h ListArticles) List(w http.ResponseWriter, r *http.Request) {
	cfg := h.Pagination
	if cfg.MaxLimit == 0 {
		cfg = pagination.DefaultConfig()
	}
	params, err := pagination.ParseQueryParams(r, cfg)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	filter := repository.Filter{}
	if feedID := q.Get("feed_id"); feedID != "" {
		filter["feed_id"] = feedID
	}
	if status := q.Get("status"); status != "" {
		filter["status"] = status
	}

	result, err := h.Articles.List(r.Context(), filter, repository.PageRequest{Page: params.Page, PerPage: params.Limit})
	if err != nil {
		writeError(w, err)
		return
	}

	meta := pagination.OffsetStrategy{}.BuildMetadata(params, result.Total, false)
	respond.JSON(w, http.StatusOK, pagination.NewResponse(result.List, meta))
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Model string `json:"model,omitempty"`
}

type searchHitDTO struct {
	ArticleID  int64   `json:"article_id"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Link       string  `json:"link"`
	Similarity float64 `json:"similarity"`
}

// Search handles POST search: embed the query, search the default
// collection, and hydrate each hit with its relational row.
func (h Retrieval) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	hits, err := h.Svc.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]searchHitDTO, len(hits))
	for i, hit := range hits {
		out[i] = searchHitDTO{
			ArticleID:  hit.Article.ID,
			Title:      hit.Article.Title,
			Summary:    hit.Article.Summary,
			Link:       hit.Article.Link,
			Similarity: hit.Similarity,
		}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"results": out})
}

// Stats handles the feed/article statistics read.
func (h Retrieval) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}
