package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

func newVectorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectorize",
		Short: "Drive the vectorization queue (C6) directly",
	}
	cmd.AddCommand(newVectorizeStatsCmd())
	cmd.AddCommand(newVectorizeDrainCmd())
	cmd.AddCommand(newVectorizeReindexCmd())
	return cmd
}

func newVectorizeStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status vectorization counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				stats, err := s.Articles.VectorizationStats(cmd.Context())
				if err != nil {
					return err
				}
				for _, status := range []entity.VectorizationStatus{
					entity.VectorizationStatusPending,
					entity.VectorizationStatusInProgress,
					entity.VectorizationStatusOK,
					entity.VectorizationStatusFailed,
				} {
					fmt.Printf("%-12s %d\n", status, stats[status])
				}
				return nil
			})
		},
	}
}

func newVectorizeDrainCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Claim and embed every pending article, one batch at a time, until the queue is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				total, failed, err := drainPendingVectorization(cmd.Context(), s, batchSize)
				fmt.Printf("processed %d article(s), %d failed\n", total, failed)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 25, "articles to claim per round trip")
	return cmd
}

// drainPendingVectorization repeatedly claims and embeds pending articles
// until GetArticlesForVectorization returns nothing more. A per-article
// embedding failure is logged and counted, not fatal to the drain.
func drainPendingVectorization(ctx context.Context, s *cliServices, batchSize int) (processed, failed int, err error) {
	for {
		candidates, err := s.Vectorize.GetArticlesForVectorization(ctx, batchSize)
		if err != nil {
			return processed, failed, err
		}
		if len(candidates) == 0 {
			return processed, failed, nil
		}
		for _, article := range candidates {
			claimed, err := s.Vectorize.ClaimVectorizationTask(ctx, article.ID)
			if err != nil {
				slog.WarnContext(ctx, "skip article, claim failed", slog.Int64("article_id", article.ID), slog.Any("error", err))
				continue
			}
			if err := s.Vectorize.ProcessArticleVectorization(ctx, claimed); err != nil {
				slog.WarnContext(ctx, "vectorization failed", slog.Int64("article_id", article.ID), slog.Any("error", err))
				failed++
			}
			processed++
		}
	}
}

func newVectorizeReindexCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every already-vectorized article against the currently configured model",
		Long: `reindex re-runs the embed-and-upsert flow against every article whose
vectorization_status is already 'ok'. Existing vectors are left in place
until each article's re-embed completes, and an article's vector only
changes model once its own reindex succeeds: this is the operator-triggered
batch path for picking up an EMBEDDING_MODEL change, since the scheduler
itself never re-embeds articles on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				processed, failed, err := reindexVectorizedArticles(cmd.Context(), s, limit)
				fmt.Printf("reindexed %d article(s), %d failed\n", processed, failed)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum articles to reindex per page (0 means unlimited pages of 100)")
	return cmd
}

func reindexVectorizedArticles(ctx context.Context, s *cliServices, limit int) (processed, failed int, err error) {
	perPage := limit
	if perPage <= 0 {
		perPage = 100
	}

	filter := repository.Filter{"vectorization_status": entity.VectorizationStatusOK}
	req := repository.PageRequest{Page: 1, PerPage: perPage}

	for {
		page, err := articlesList(ctx, s, filter, req)
		if err != nil {
			return processed, failed, err
		}
		if len(page.List) == 0 {
			return processed, failed, nil
		}
		for _, article := range page.List {
			if err := s.Vectorize.ProcessArticleVectorization(ctx, article); err != nil {
				slog.WarnContext(ctx, "reindex failed", slog.Int64("article_id", article.ID), slog.Any("error", err))
				failed++
			}
			processed++
			if limit > 0 && processed >= limit {
				return processed, failed, nil
			}
		}
		if req.Page >= page.Pages {
			return processed, failed, nil
		}
		req.Page++
	}
}

func articlesList(ctx context.Context, s *cliServices, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Article], error) {
	return s.Articles.List(ctx, filter, req)
}
