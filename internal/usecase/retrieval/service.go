// Package retrieval implements the retrieval façade (C10): article detail
// with similar-article attachments, text search over the vector store, and
// aggregate vectorization statistics.
package retrieval

import (
	"context"
	"fmt"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/infra/vectorstore"
	"github.com/ossfeed/coordinator/internal/repository"
)

const maxSimilarArticles = 5

// Config holds the façade's tunables.
type Config struct {
	EmbeddingProviderType string // empty selects the registry default
	EmbeddingModel        string
}

// Registry is the subset of llm.Registry the façade depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Similar is one similar-article attachment.
type Similar struct {
	Article    *entity.Article
	Similarity float64
}

// ArticleDetail is an article plus its similar-article attachments.
type ArticleDetail struct {
	Article *entity.Article
	Similar []Similar
}

// SearchHit is one hydrated text-search result.
type SearchHit struct {
	Article    *entity.Article
	Similarity float64
}

// Stats is the retrieval surface's aggregate statistics.
type Stats struct {
	ByVectorizationStatus map[entity.VectorizationStatus]int64
	VectorCount           int64
}

// Service orchestrates C10 atop ArticleRepository, FeedRepository, the
// vector store, and the model-provider registry.
type Service struct {
	Articles repository.ArticleRepository
	Feeds    repository.FeedRepository
	Store    vectorstore.Store
	Registry Registry
	Config   Config
}

// NewService constructs a Service with the given dependencies and config.
func NewService(articles repository.ArticleRepository, feeds repository.FeedRepository, store vectorstore.Store, registry Registry, cfg Config) *Service {
	return &Service{Articles: articles, Feeds: feeds, Store: store, Registry: registry, Config: cfg}
}

// ArticleWithSimilar returns an article's relational row plus, if it has
// been vectorized, up to 5 similar articles from the vector store
// (excluding itself).
func (s *Service) ArticleWithSimilar(ctx context.Context, articleID int64) (*ArticleDetail, error) {
	article, err := s.Articles.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: get article %d: %w", articleID, err)
	}
	if article == nil {
		return nil, fmt.Errorf("retrieval: article %d: %w", articleID, entity.ErrNotFound)
	}

	detail := &ArticleDetail{Article: article}
	if !article.Vector.IsVectorized || article.Vector.VectorID == "" {
		return detail, nil
	}

	records, err := s.Store.Get(ctx, vectorstore.DefaultCollection, []string{article.Vector.VectorID})
	if err != nil || len(records) == 0 {
		// A vectorized article missing its own vector record is a data
		// inconsistency, not a caller error: return the bare article rather
		// than failing the whole detail lookup.
		return detail, nil
	}

	hits, err := s.Store.Search(ctx, vectorstore.DefaultCollection, records[0].Vector, maxSimilarArticles+1, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search similar for article %d: %w", articleID, err)
	}

	similar, err := s.hydrateHits(ctx, hits, article.Vector.VectorID, maxSimilarArticles)
	if err != nil {
		return nil, err
	}
	detail.Similar = similar
	return detail, nil
}

// Search embeds the query text, searches the default collection, and
// hydrates each hit with its relational row and similarity score.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	provider, err := s.Registry.CreateProvider(ctx, s.Config.EmbeddingProviderType, s.Config.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create embedding provider: %w", err)
	}

	embedded, err := provider.Embed(ctx, llm.EmbedRequest{Model: s.Config.EmbeddingModel, Input: []string{query}})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(embedded.Embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: query embedding: %w", entity.ErrProviderFatal)
	}

	hits, err := s.Store.Search(ctx, vectorstore.DefaultCollection, embedded.Embeddings[0], limit, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	similar, err := s.hydrateHits(ctx, hits, "", limit)
	if err != nil {
		return nil, err
	}

	out := make([]SearchHit, len(similar))
	for i, sim := range similar {
		out[i] = SearchHit{Article: sim.Article, Similarity: sim.Similarity}
	}
	return out, nil
}

// hydrateHits resolves each vector-search hit to its relational Article,
// excluding excludeVectorID (the article's own record when searching for
// similar articles) and capping the output at limit entries.
func (s *Service) hydrateHits(ctx context.Context, hits []vectorstore.SearchHit, excludeVectorID string, limit int) ([]Similar, error) {
	out := make([]Similar, 0, len(hits))
	for _, hit := range hits {
		if hit.ID == excludeVectorID {
			continue
		}
		if len(out) >= limit {
			break
		}

		articleID, ok := hit.Metadata["article_id"]
		if !ok {
			continue
		}
		id, ok := toInt64(articleID)
		if !ok {
			continue
		}

		article, err := s.Articles.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("retrieval: hydrate hit article %d: %w", id, err)
		}
		if article == nil {
			continue
		}
		out = append(out, Similar{Article: article, Similarity: hit.Score})
	}
	return out, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Statistics returns relational vectorization-status counts plus the vector
// store's record count.
func (s *Service) Statistics(ctx context.Context) (Stats, error) {
	counts, err := s.Articles.VectorizationStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("retrieval: vectorization stats: %w", err)
	}

	exists, err := s.Store.IndexExists(ctx, vectorstore.DefaultCollection)
	if err != nil {
		return Stats{}, fmt.Errorf("retrieval: check collection: %w", err)
	}
	if !exists {
		return Stats{ByVectorizationStatus: counts}, nil
	}

	count, err := s.Store.Count(ctx, vectorstore.DefaultCollection, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("retrieval: count vectors: %w", err)
	}
	return Stats{ByVectorizationStatus: counts, VectorCount: count}, nil
}
