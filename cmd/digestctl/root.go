package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ossfeed/coordinator/internal/infra/digestctlconfig"
)

var cfgFile string

// NewRootCmd creates the digestctl root command with every operator
// subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "digestctl",
		Short: "Operator CLI for the feed coordinator",
		Long: `digestctl inspects and nudges the coordinator's feed-sync, crawl, and
vectorization queues directly against the database, without going through
the worker-facing HTTP surface.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.digestctl.yaml)")

	rootCmd.AddCommand(newFeedsCmd())
	rootCmd.AddCommand(newArticlesCmd())
	rootCmd.AddCommand(newCrawlCmd())
	rootCmd.AddCommand(newVectorizeCmd())
	rootCmd.AddCommand(newDashboardCmd())

	return rootCmd
}

// initConfig loads digestctl's configuration once, ahead of every command's
// RunE, and sets DATABASE_URL from it so db.Open picks up the resolved value.
func initConfig() {
	cfg, err := digestctlconfig.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL != "" {
		os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	}
}
