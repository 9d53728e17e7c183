package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/internal/cli"
	"github.com/aretw0/operad/internal/config"
	"github.com/aretw0/operad/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "operad",
	Short:         "operad compiles natural-language clauses into self-adapting kernels",
	Long:          `operad turns WHEN/THEN clauses into a dependency graph, runs it under an entropy governor and adapts it to reflex events.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Log.Format, _ = cmd.Flags().GetString("log-format")
		}
		level, err := logging.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWriter(os.Stderr, level, loaded.Log.Format)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "operad.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.Version = strings.TrimSpace(operad.Version)
}

// setupApp builds the engine and stores for commands that run kernels.
func setupApp() (*cli.App, error) {
	return cli.Setup(cfg, logger)
}
