package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newArticlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Inspect and nudge the crawl queue (C5)",
	}
	cmd.AddCommand(newArticlesPendingCmd())
	cmd.AddCommand(newArticlesResetCmd())
	return cmd
}

func newArticlesPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List articles eligible for the next crawl dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				pending, err := s.Crawl.PendingArticles(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "ARTICLE ID\tFEED ID\tTITLE\tRETRIES\tSCRIPT")
				for _, p := range pending {
					script := "default"
					if p.Script != nil {
						script = fmt.Sprintf("v%d", p.Script.Version)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%s\n", p.Article.ID, p.Article.FeedID, truncate(p.Article.Title, 60), p.Article.RetryCount, p.Article.MaxRetries, script)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum articles to list")
	return cmd
}

func newArticlesResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <article-id>",
		Short: "Clear an article's crawl lease and status, undoing a terminal failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q: %w", args[0], err)
			}
			return withServices(func(s *cliServices) error {
				if err := s.Crawl.ResetArticle(cmd.Context(), articleID); err != nil {
					return err
				}
				fmt.Printf("reset article %d\n", articleID)
				return nil
			})
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
