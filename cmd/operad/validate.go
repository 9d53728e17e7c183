package main

import (
	"fmt"

	"github.com/aretw0/operad/internal/cli"
	"github.com/aretw0/operad/internal/presentation/tui"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow]",
	Short: "Check that a workflow or clause library compiles",
	Long: `Parses every clause, builds the dependency graph and reports the first
error. With --library and --watch the library is re-validated on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		report := func(ko *domain.KernelObject, err error) {
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", tui.Status(out, "invalid"), err)
				return
			}
			fmt.Fprintf(out, "%s %s: %d nodes\n", tui.Status(out, "valid"), ko.ID, len(ko.Nodes))
		}

		library, _ := cmd.Flags().GetString("library")
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			if library == "" {
				return fmt.Errorf("--watch needs --library")
			}
			ctx, cancel := runner.SignalContext(cmd.Context())
			defer cancel()
			id, _ := cmd.Flags().GetString("id")
			return cli.WatchLibrary(ctx, library, id, logger, report)
		}

		ko, err := compileFromFlags(cmd, args)
		report(ko, err)
		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addSourceFlags(validateCmd)
	validateCmd.Flags().Bool("watch", false, "Re-validate the library on every change")
}
