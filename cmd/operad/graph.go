package main

import (
	"fmt"

	"github.com/aretw0/operad/internal/presentation/graph"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Print the kernel's dependency graph as a Mermaid flowchart",
	Long: `Renders the nodes, dependencies and reflex triggers of a kernel. With --run
the kernel of a persisted run is drawn with its progress highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ko, state, err := kernelForView(cmd, args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(ko, graph.OverlayFromState(state)))
		return err
	},
}

// kernelForView resolves the kernel (and run state with --run) shown by
// graph and explain.
func kernelForView(cmd *cobra.Command, args []string) (*domain.KernelObject, *domain.ExecutionState, error) {
	runID, _ := cmd.Flags().GetString("run")
	if runID == "" {
		ko, err := compileFromFlags(cmd, args)
		return ko, nil, err
	}

	app, err := setupApp()
	if err != nil {
		return nil, nil, err
	}
	defer app.Close()
	state, err := app.Manager.Load(cmd.Context(), runID)
	if err != nil {
		return nil, nil, err
	}
	ko, err := app.Manager.Kernel(cmd.Context(), runID)
	if err != nil {
		return nil, nil, err
	}
	return ko, state, nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addSourceFlags(graphCmd)
	graphCmd.Flags().String("run", "", "Draw the kernel of a persisted run with its progress")
}
