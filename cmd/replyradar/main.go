package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "replyradar",
		Short:         "Harvest high-value reply opportunities from curated source accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(harvestCmd())
	root.AddCommand(opportunitiesCmd())
	root.AddCommand(consumeCmd())
	root.AddCommand(seedsCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func harvestCmd() *cobra.Command {
	var (
		accounts   []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest batch over the source accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd.Context(), accounts, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "account", nil, "harvest only these accounts (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func opportunitiesCmd() *cobra.Command {
	var (
		opts       listFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"ops"},
		Short:   "List stored reply opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpportunities(cmd.Context(), opts, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&opts.status, "status", "pending", "filter by status (pending, consumed, or empty for all)")
	cmd.Flags().StringVar(&opts.tier, "tier", "", "filter by value tier (S, A, B)")
	cmd.Flags().StringVar(&opts.account, "account", "", "filter by source account")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "minimum final opportunity score")
	cmd.Flags().StringVar(&opts.order, "order", "final", "sort order (final, legacy, recent)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max opportunities to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume <post-id>",
		Short: "Mark an opportunity as consumed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(cmd.Context(), args[0])
		},
	}
}

func seedsCmd() *cobra.Command {
	var (
		account    string
		batchID    string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Show per-account harvest statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeeds(cmd.Context(), account, batchID, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "filter by source account")
	cmd.Flags().StringVar(&batchID, "batch", "", "filter by batch id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func scoreCmd() *cobra.Command {
	var in scoreFlags

	cmd := &cobra.Command{
		Use:   "score <text>",
		Short: "Evaluate a single post without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(args[0], in)
		},
	}

	cmd.Flags().StringVar(&in.author, "author", "", "author handle")
	cmd.Flags().Int64Var(&in.likes, "likes", -1, "like count (-1 for unknown)")
	cmd.Flags().IntVar(&in.ageMinutes, "age", -1, "post age in minutes (-1 for unknown)")
	cmd.Flags().Int64Var(&in.followers, "followers", -1, "author follower count (-1 for unknown)")
	cmd.Flags().Int64Var(&in.views, "views", -1, "view count (-1 for unknown)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
