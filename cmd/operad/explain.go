package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var explainCmd = &cobra.Command{
	Use:   "explain [workflow]",
	Short: "Describe a kernel's clauses, loop control and reflexes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ko, state, err := kernelForView(cmd, args)
		if err != nil {
			return err
		}
		md := tui.Explain(ko, state)
		out := cmd.OutOrStdout()

		plain, _ := cmd.Flags().GetBool("plain")
		if plain {
			_, err = fmt.Fprint(out, md)
			return err
		}

		width := 100
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		style, _ := cmd.Flags().GetString("style")
		render, err := tui.NewRenderer(style, width)
		if err != nil {
			return err
		}
		rendered, err := render(md)
		if err != nil {
			return err
		}
		tui.PrintBanner(out, strings.TrimSpace(operad.Version))
		_, err = fmt.Fprint(out, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
	addSourceFlags(explainCmd)
	explainCmd.Flags().String("run", "", "Explain the kernel of a persisted run with its progress")
	explainCmd.Flags().Bool("plain", false, "Print raw markdown")
	explainCmd.Flags().String("style", "auto", "Glamour style (auto, dark, light, notty)")
}
