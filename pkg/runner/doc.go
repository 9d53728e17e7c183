/*
Package runner drives kernel runs to a terminal state.

A Runner executes a kernel, and when the entropy governor freezes it asks a
DecisionProvider whether to continue, stay frozen or reset. Reflex events are
fed through a rate limiter into the engine's queue and applied at the next
iteration boundary. RunAll executes independent kernels concurrently.

# Usage

	r := runner.New(engine,
		runner.WithDecider(runner.NewTextDecider(os.Stdin, os.Stderr)),
		runner.WithEventRate(rate.Limit(20), 5),
	)

	res, err := r.Run(ctx, ko, vars)
*/
package runner
