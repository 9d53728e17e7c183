package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aretw0/operad/internal/cli"
	"github.com/aretw0/operad/internal/presentation/tui"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var runCmd = &cobra.Command{
	Use:   "run [workflow]",
	Short: "Execute a kernel until it completes, fails or freezes",
	Long: `Compiles the workflow (or --library) and runs it. The document's context is
merged with --var pairs. Reflex events from --events (JSON lines) are fed at
the configured rate while the run is in progress.

When the entropy governor freezes the run, the decision is taken from
--decide, asked on the terminal, or exchanged as JSON lines with --json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ko, vars, err := loadFromFlags(cmd, args)
		if err != nil {
			return err
		}
		pairs, _ := cmd.Flags().GetStringArray("var")
		extra, err := cli.ParseVars(pairs)
		if err != nil {
			return err
		}
		if vars == nil {
			vars = domain.Vars{}
		}
		for k, v := range extra {
			vars[k] = v
		}

		var events []domain.ReflexEvent
		if path, _ := cmd.Flags().GetString("events"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			events, err = cli.DecodeEvents(f)
			f.Close()
			if err != nil {
				return err
			}
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

		var res *domain.KOExecutionResult
		g, gctx := errgroup.WithContext(ctx)
		intakeCtx, stopIntake := context.WithCancel(gctx)
		g.Go(func() error {
			err := r.Intake(intakeCtx, ko.ID, cli.Feed(intakeCtx, events))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			defer stopIntake()
			var err error
			res, err = r.Run(gctx, ko, vars)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
		return report(cmd, res)
	},
}

// newRunner builds a runner from the shared run/resume flags.
func newRunner(cmd *cobra.Command, app *cli.App) (*runner.Runner, error) {
	maxIter, _ := cmd.Flags().GetInt("max-iterations")
	opts := []runner.Option{
		runner.WithManager(app.Manager),
		runner.WithLogger(logger),
		runner.WithMaxIterations(maxIter),
		runner.WithEventRate(rate.Limit(cfg.Events.Rate), cfg.Events.Burst),
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	fixed, _ := cmd.Flags().GetString("decide")
	switch {
	case fixed != "":
		d, err := runner.ParseDecision(fixed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runner.WithDecider(runner.Always(d)))
	case asJSON:
		opts = append(opts, runner.WithDecider(runner.NewJSONDecider(cmd.InOrStdin(), cmd.OutOrStdout())))
	case term.IsTerminal(int(os.Stdin.Fd())):
		opts = append(opts, runner.WithDecider(runner.NewTextDecider(os.Stdin, cmd.ErrOrStderr())))
	}
	return runner.New(app.Engine, opts...), nil
}

// report prints the result and turns a failed run into a command error.
func report(cmd *cobra.Command, res *domain.KOExecutionResult) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		if err := enc.Encode(map[string]any{"type": "result", "result": res}); err != nil {
			return err
		}
	} else {
		printResult(out, res)
	}
	switch res.State.Status {
	case domain.StatusFailed, domain.StatusMaxIterationsExceeded:
		return fmt.Errorf("run %s %s", res.State.RunID, res.State.Status)
	}
	return nil
}

func printResult(w io.Writer, res *domain.KOExecutionResult) {
	s := res.State
	fmt.Fprintf(w, "run %s (%s): %s after %d iterations in %s\n",
		s.RunID, s.KernelID, tui.Status(w, string(s.Status)), s.Iteration, res.Duration)
	if res.ErrorMessage != "" {
		fmt.Fprintf(w, "  error: %s\n", res.ErrorMessage)
	}
	for _, d := range res.Degraded {
		fmt.Fprintf(w, "  degraded %s after %d attempts: %s\n", d.NodeID, d.Attempts, d.Reason)
	}

	keys := make([]string, 0, len(res.Outputs))
	for k := range res.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, res.Outputs[k])
	}
	if res.Decision != nil {
		fmt.Fprintf(w, "  frozen: entropy %.3f over cap %.3f, resume with: operad resume %s --decide continue\n",
			res.Decision.Entropy, res.Decision.Cap, s.RunID)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-iterations", 0, "Iteration bound (default from the kernel)")
	cmd.Flags().String("decide", "", "Answer every freeze with continue, freeze or reset")
	cmd.Flags().Bool("json", false, "Print the result and exchange freeze decisions as JSON lines")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSourceFlags(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().StringArray("var", nil, "Context variable as key=value (repeatable)")
	runCmd.Flags().String("events", "", "JSON-lines file of reflex events to feed during the run")
}
