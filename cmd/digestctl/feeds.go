package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/feedprobe"
	"github.com/ossfeed/coordinator/internal/repository"
)

func newFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Inspect and nudge the feed-sync queue (C4)",
	}
	cmd.AddCommand(newFeedsPendingCmd())
	cmd.AddCommand(newFeedsStatsCmd())
	cmd.AddCommand(newFeedsResetFailuresCmd())
	cmd.AddCommand(newFeedsAutoDisableCmd())
	cmd.AddCommand(newFeedsProbeCmd())
	cmd.AddCommand(newFeedsAddCmd())
	return cmd
}

func newFeedsProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>",
		Short: "Fetch and parse a feed URL without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := feedprobe.NewProber(nil).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("title:        %s\n", result.Title)
			fmt.Printf("description:  %s\n", result.Description)
			fmt.Printf("logo:         %s\n", result.Logo)
			fmt.Printf("entries:      %d\n", result.EntriesFound)
			if result.LatestEntryAt != nil {
				fmt.Printf("latest entry: %s\n", result.LatestEntryAt.Format("2006-01-02T15:04:05"))
			}
			return nil
		},
	}
}

func newFeedsAddCmd() *cobra.Command {
	var title, category string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Probe a feed URL and register it as an active feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURL := args[0]
			result, err := feedprobe.NewProber(nil).Probe(cmd.Context(), feedURL)
			if err != nil {
				return fmt.Errorf("probe %s: %w", feedURL, err)
			}
			if title == "" {
				title = result.Title
			}

			feed := &entity.Feed{
				ID:          uuid.NewString(),
				URL:         feedURL,
				CategoryID:  category,
				Title:       title,
				Description: result.Description,
				Logo:        result.Logo,
				IsActive:    true,
			}
			if err := feed.Validate(); err != nil {
				return err
			}
			return withServices(func(s *cliServices) error {
				if err := s.Feeds.Create(cmd.Context(), feed); err != nil {
					return err
				}
				fmt.Printf("registered feed %s (%s), %d entries at probe time\n", feed.ID, feed.Title, result.EntriesFound)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "override the probed feed title")
	cmd.Flags().StringVar(&category, "category", "uncategorized", "feed category id")
	return cmd
}

func newFeedsPendingCmd() *cobra.Command {
	var limit int
	var skipRecent bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List feeds eligible for the next sync dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				feeds, err := s.FeedSync.PendingFeeds(cmd.Context(), limit, skipRecent)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "FEED ID\tURL\tFAILURES\tLAST SYNC\tLEASED BY")
				for _, f := range feeds {
					lastSync := "never"
					if f.Health.LastSyncAt != nil {
						lastSync = f.Health.LastSyncAt.Format("2006-01-02T15:04:05")
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", f.ID, f.URL, f.Health.ConsecutiveFailures, lastSync, f.Health.LastSyncCrawlerID)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum feeds to list")
	cmd.Flags().BoolVar(&skipRecent, "skip-recent-success", false, "exclude feeds synced successfully within the configured interval")
	return cmd
}

func newFeedsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate feed-sync counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				stats, err := s.FeedSync.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printFeedStats(stats)
				return nil
			})
		},
	}
}

func printFeedStats(stats repository.FeedSyncStats) {
	fmt.Printf("total feeds:    %d\n", stats.TotalFeeds)
	fmt.Printf("active feeds:   %d\n", stats.ActiveFeeds)
	fmt.Printf("disabled feeds: %d\n", stats.DisabledFeeds)
	fmt.Printf("leased feeds:   %d\n", stats.LeasedFeeds)
	fmt.Printf("failing feeds:  %d\n", stats.FailingFeeds)
}

func newFeedsResetFailuresCmd() *cobra.Command {
	var reactivate bool
	cmd := &cobra.Command{
		Use:   "reset-failures [feed-id]",
		Short: "Clear consecutive_failures for one feed, or every feed if omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var feedID string
			if len(args) == 1 {
				feedID = args[0]
			}
			return withServices(func(s *cliServices) error {
				if err := s.FeedSync.ResetFailures(cmd.Context(), feedID, reactivate); err != nil {
					return err
				}
				if feedID == "" {
					fmt.Println("reset failures for all feeds")
				} else {
					fmt.Printf("reset failures for feed %s\n", feedID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reactivate, "reactivate", false, "also set is_active=true")
	return cmd
}

func newFeedsAutoDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-disable",
		Short: "Run the auto-disable sweep immediately, off its normal schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				n, err := s.FeedSync.AutoDisableFailedFeeds(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("disabled %d feed(s) at or past the failure threshold\n", n)
				return nil
			})
		},
	}
}
