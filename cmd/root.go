package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nervos-bot",
	Short: "GitHub automation bot for the Nervos repositories",
	Long: `nervos-bot reacts to GitHub webhook events with repository policies:
base-branch title tagging, hold gating, reviewer rotation, dummy and
synced CI check-runs, backport tracking, fork PR mirroring and merge
notifications to Telegram.

Get started:
  nervos-bot serve     Run the webhook server
  nervos-bot chat      Run the Telegram chat listener
  nervos-bot doctor    Verify credentials and connectivity`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./nervos-bot.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		chatCmd,
		doctorCmd,
	)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
