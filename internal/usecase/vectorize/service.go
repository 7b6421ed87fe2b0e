// Package vectorize implements the vectorization scheduler (C6): turning
// finished articles into searchable embeddings in the vector store.
package vectorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/infra/vectorstore"
	"github.com/ossfeed/coordinator/internal/repository"
)

// maxVectorizationErrorLen matches the truncation length applied on the
// repository side for vectorization_error; kept here too so the usecase
// never hands the store an unbounded string.
const maxVectorizationErrorLen = 1000

// Config holds the scheduler's tunables.
type Config struct {
	EmbeddingModel  string
	VectorDimension int
	ProviderType    string // empty selects the registry default
}

// Registry is the subset of llm.Registry the scheduler depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Service orchestrates C6 atop ArticleRepository's claim primitives, the
// vector store, and the model-provider registry.
type Service struct {
	Articles repository.ArticleRepository
	Tasks    repository.VectorizationTaskRepository
	Store    vectorstore.Store
	Registry Registry
	Config   Config
	now      func() time.Time
}

// NewService constructs a Service with the given dependencies and config.
func NewService(articles repository.ArticleRepository, tasks repository.VectorizationTaskRepository, store vectorstore.Store, registry Registry, cfg Config) *Service {
	return &Service{Articles: articles, Tasks: tasks, Store: store, Registry: registry, Config: cfg, now: time.Now}
}

// GetArticlesForVectorization returns vectorization candidates.
func (s *Service) GetArticlesForVectorization(ctx context.Context, limit int) ([]*entity.Article, error) {
	articles, err := s.Articles.PendingVectorization(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("vectorize: pending vectorization: %w", err)
	}
	return articles, nil
}

// ClaimVectorizationTask marks an article in_progress, analogous to C5's
// ClaimArticle but over the vector-lease fields.
func (s *Service) ClaimVectorizationTask(ctx context.Context, articleID int64) (*entity.Article, error) {
	article, err := s.Articles.ClaimVectorization(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("vectorize: claim vectorization for article %d: %w", articleID, err)
	}
	return article, nil
}

// vectorText chooses the richest available text for embedding.
func vectorText(article *entity.Article) string {
	chosen := article.Title
	switch {
	case article.EnglishSummary != nil && *article.EnglishSummary != "":
		chosen = *article.EnglishSummary
	case article.ChineseSummary != nil && *article.ChineseSummary != "":
		chosen = *article.ChineseSummary
	case article.Summary != "":
		chosen = article.Summary
	}
	return strings.TrimSpace(article.Title + "\n" + chosen)
}

// ProcessArticleVectorization runs the full embed-and-upsert flow. On any
// failure it releases the claim by recording vectorization_status=failed
// with a truncated error message.
func (s *Service) ProcessArticleVectorization(ctx context.Context, article *entity.Article) error {
	started := s.now()
	result, vecErr := s.vectorize(ctx, article)

	task := &entity.VectorizationTask{
		BatchID:        uuid.New().String(),
		ArticleID:      article.ID,
		Total:          1,
		Processed:      1,
		EmbeddingModel: s.Config.EmbeddingModel,
		StartedAt:      started,
	}

	if vecErr != nil {
		msg := vecErr.Error()
		if len(msg) > maxVectorizationErrorLen {
			msg = msg[:maxVectorizationErrorLen]
		}
		task.Failed = 1
		task.Status = entity.VectorizationStatusFailed
		task.ErrorMessage = msg
		ended := s.now()
		task.EndedAt = &ended
		s.appendTask(ctx, task)

		if uerr := s.Articles.UpdateVectorResult(ctx, article.ID, repository.VectorResult{
			OK: false, ErrorMessage: msg, Now: ended,
		}); uerr != nil {
			return fmt.Errorf("vectorize: record failure for article %d: %w (original error: %s)", article.ID, uerr, msg)
		}
		return fmt.Errorf("vectorize: article %d: %w", article.ID, vecErr)
	}

	task.Success = 1
	task.Status = entity.VectorizationStatusOK
	ended := s.now()
	task.EndedAt = &ended
	s.appendTask(ctx, task)

	if err := s.Articles.UpdateVectorResult(ctx, article.ID, result); err != nil {
		return fmt.Errorf("vectorize: record success for article %d: %w", article.ID, err)
	}
	return nil
}

// appendTask writes the bookkeeping row for one vectorization attempt.
// Bookkeeping is best-effort: a write failure here must not mask the
// underlying vectorization outcome already being returned to the caller.
func (s *Service) appendTask(ctx context.Context, task *entity.VectorizationTask) {
	if s.Tasks == nil {
		return
	}
	if err := s.Tasks.Append(ctx, task); err != nil {
		slog.WarnContext(ctx, "vectorization task bookkeeping write failed",
			slog.Int64("article_id", task.ArticleID), slog.String("error", err.Error()))
	}
}

func (s *Service) vectorize(ctx context.Context, article *entity.Article) (repository.VectorResult, error) {
	if err := vectorstore.EnsureCollection(ctx, s.Store, vectorstore.DefaultCollection, s.Config.VectorDimension); err != nil {
		return repository.VectorResult{}, fmt.Errorf("ensure collection: %w", err)
	}

	text := vectorText(article)
	if text == "" {
		return repository.VectorResult{}, fmt.Errorf("%w: no text available to embed", entity.ErrValidationFailed)
	}

	provider, err := s.Registry.CreateProvider(ctx, s.Config.ProviderType, s.Config.EmbeddingModel)
	if err != nil {
		return repository.VectorResult{}, fmt.Errorf("create embedding provider: %w", err)
	}

	embedded, err := provider.Embed(ctx, llm.EmbedRequest{Model: s.Config.EmbeddingModel, Input: []string{text}})
	if err != nil {
		return repository.VectorResult{}, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(embedded.Embeddings) == 0 {
		return repository.VectorResult{}, fmt.Errorf("%w: provider returned no embedding", entity.ErrProviderFatal)
	}
	vector := embedded.Embeddings[0]

	vectorID := fmt.Sprintf("article_%s_%d", article.FeedID, article.ID)

	var summary string
	if article.ChineseSummary != nil {
		summary = *article.ChineseSummary
	} else {
		summary = article.Summary
	}

	var publishedAt any
	if article.PublishedDate != nil {
		publishedAt = article.PublishedDate.Format(time.RFC3339)
	}

	now := s.now()
	err = s.Store.Upsert(ctx, vectorstore.DefaultCollection, []vectorstore.Record{{
		ID:     vectorID,
		Vector: vector,
		Metadata: map[string]any{
			"article_id":     article.ID,
			"feed_id":        article.FeedID,
			"title":          article.Title,
			"summary":        summary,
			"published_date": publishedAt,
			"vectorized_at":  now.Format(time.RFC3339),
		},
	}})
	if err != nil {
		return repository.VectorResult{}, fmt.Errorf("upsert vector: %w", err)
	}

	return repository.VectorResult{
		OK:              true,
		VectorID:        vectorID,
		EmbeddingModel:  s.Config.EmbeddingModel,
		VectorDimension: len(vector),
		Now:             now,
	}, nil
}
