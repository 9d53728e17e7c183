package main

import (
	"fmt"

	"github.com/aretw0/operad/internal/cli"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a persisted run",
	Long: `Resumes a frozen, cancelled or interrupted run from the configured store.
Completed nodes are not executed again. Needs a persistent store backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("var")
		vars, err := cli.ParseVars(pairs)
		if err != nil {
			return err
		}

		app, err := setupApp()
		if err != nil {
			return err
		}
		defer app.Close()

		r, err := newRunner(cmd, app)
		if err != nil {
			return err
		}
		ctx, cancel := runner.SignalContext(cmd.Context())
		defer cancel()

		res, err := r.Resume(ctx, args[0], vars)
		if err != nil {
			return err
		}
		return report(cmd, res)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Manager.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range ids {
			state, err := app.Manager.Load(cmd.Context(), id)
			if err != nil {
				logger.Warn("skipping unreadable run", "run", id, "error", err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t%d\n", id, state.KernelID, state.Status, state.Iteration)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd, runsCmd)
	addRunFlags(resumeCmd)
	resumeCmd.Flags().StringArray("var", nil, "Context variable to set before resuming (repeatable)")
}
