package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/internal/cli"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [workflow]",
	Short: "Compile a workflow or clause library into a kernel document",
	Long: `Compiles a workflow file (YAML or JSON) or, with --library, a directory of
markdown clauses into a serialized kernel. With --register the kernel is also
stored in the configured backend so runs can be started by id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ko, err := compileFromFlags(cmd, args)
		if err != nil {
			return err
		}
		data, err := operad.New().Marshal(ko)
		if err != nil {
			return err
		}

		if register, _ := cmd.Flags().GetBool("register"); register {
			app, err := setupApp()
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Manager.Register(cmd.Context(), ko); err != nil {
				return err
			}
			logger.Info("kernel registered", "ko", ko.ID, "store", cfg.Store.Backend)
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" || out == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		return os.WriteFile(out, append(data, '\n'), 0o644)
	},
}

// compileFromFlags resolves the kernel source shared by compile, validate,
// graph and explain: a workflow path argument or a --library directory.
func compileFromFlags(cmd *cobra.Command, args []string) (*domain.KernelObject, error) {
	ko, _, err := loadFromFlags(cmd, args)
	return ko, err
}

func loadFromFlags(cmd *cobra.Command, args []string) (*domain.KernelObject, domain.Vars, error) {
	library, _ := cmd.Flags().GetString("library")
	if library != "" {
		id, _ := cmd.Flags().GetString("id")
		clauses, _ := cmd.Flags().GetStringSlice("clause")
		ko, err := cli.CompileLibrary(cmd.Context(), library, id, clauses...)
		return ko, nil, err
	}
	if len(args) == 0 {
		return nil, nil, errors.New("a workflow file or --library is required")
	}
	return cli.LoadKernel(operad.New(), args[0])
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("library", "", "Directory of markdown clauses to compile instead of a workflow")
	cmd.Flags().String("id", "library", "Kernel id when compiling a library")
	cmd.Flags().StringSlice("clause", nil, "Library clause ids to include (default all)")
}

func init() {
	rootCmd.AddCommand(compileCmd)
	addSourceFlags(compileCmd)
	compileCmd.Flags().StringP("output", "o", "", "Write the kernel to a file instead of stdout")
	compileCmd.Flags().Bool("register", false, "Store the kernel in the configured backend")
}
