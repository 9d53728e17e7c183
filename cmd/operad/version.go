package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of operad",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "operad version %s (%s)\n", strings.TrimSpace(operad.Version), domain.KernelFormat)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
