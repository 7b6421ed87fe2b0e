package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ossfeed/coordinator/internal/repository"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Inspect crawl batches and their bookkeeping trail",
	}
	cmd.AddCommand(newCrawlStatsCmd())
	cmd.AddCommand(newCrawlResetBatchCmd())
	return cmd
}

func newCrawlStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate crawl-batch counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				stats, err := s.Crawl.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printCrawlStats(stats)
				return nil
			})
		},
	}
}

func printCrawlStats(stats repository.CrawlStats) {
	fmt.Printf("total batches:    %d\n", stats.TotalBatches)
	fmt.Printf("success batches:  %d\n", stats.SuccessBatches)
	fmt.Printf("failed batches:   %d\n", stats.FailedBatches)
	fmt.Printf("avg processing:   %.1fms\n", stats.AvgProcessingTimeMs)
}

func newCrawlResetBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-batch <batch-id>",
		Short: "Clear a batch's sub-stage logs",
		Long:  "Clears the batch's logs only. The operator is responsible for also resetting the associated article with 'digestctl articles reset' if it should be retried.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID := args[0]
			return withServices(func(s *cliServices) error {
				if err := s.Crawl.ResetBatch(cmd.Context(), batchID); err != nil {
					return err
				}
				fmt.Printf("reset batch %s\n", batchID)
				return nil
			})
		},
	}
}
