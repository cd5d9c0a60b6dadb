package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/claimflow/internal/config"
	"github.com/ShayCichocki/claimflow/internal/orchestrator"
)

var (
	configPath string
	debugMode  bool
	logFile    string

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
	// closeLog flushes the log file, if one is open.
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "claimflow",
	Short: "Insurance claim intake and decisioning",
	Long: `claimflow takes an insurance claim through a short conversation,
then runs a fixed set of checks against the policy: coverage, exclusions,
payout, required documents and claim history. It decides to approve,
deny or refer the claim for review and prints a report.

With no arguments, starts the terminal chat.

Configuration is read from ~/.config/claimflow/config.yaml, then from
.claimflow.yaml in the current directory or a parent, then from
CLAIMFLOW_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}

		level := cfg.Log.SlogLevel()
		if debugMode {
			level = slog.LevelDebug
		}
		if logFile != "" {
			cfg.Log.File = logFile
		}
		var logger *slog.Logger
		logger, closeLog = config.SetupLogger(cfg.Log.File, level)
		slog.SetDefault(logger)
		orchestrator.SetLogger(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: layered user and project config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")

	rootCmd.Flags().BoolVar(&chatPlain, "plain", false, "Use a line-based prompt instead of the full-screen chat")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
