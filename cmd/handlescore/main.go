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
		Use:           "handlescore",
		Short:         "Score social media handles from their weekly engagement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scoreCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(overviewCmd())
	root.AddCommand(connectCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func scoreCmd() *cobra.Command {
	var (
		userID     string
		adjustment float64
		force      bool
		jsonOutput bool
		inputFile  string
	)

	cmd := &cobra.Command{
		Use:   "score <platform> <handle>",
		Short: "Fetch and score one handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var adj *float64
			if cmd.Flags().Changed("p-variable") {
				adj = &adjustment
			}
			return runScore(args[0], args[1], userID, adj, force, jsonOutput, inputFile)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id the score belongs to (required)")
	cmd.Flags().Float64Var(&adjustment, "p-variable", 0, "score adjustment term (default: from config)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the freshness window")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&inputFile, "input", "", "score a saved scrape (JSON batch) instead of fetching")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func refreshCmd() *cobra.Command {
	var (
		userID string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-score connected accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(userID, force)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "only refresh this user (default: everyone)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the freshness window")
	return cmd
}

func overviewCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "overview <user>",
		Short: "Show a user's handle scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverview(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func connectCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "connect <user> <platform> [handle]",
		Short: "Link (or unlink with --remove) a handle to a user",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle := ""
			if len(args) == 3 {
				handle = args[2]
			}
			return runConnect(args[0], args[1], handle, remove)
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "remove the connection")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, false)
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
			return runServe(port, true)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
