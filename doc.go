/*
Package operad compiles declarative clauses into executable kernel objects and runs them.

A clause has the form "WHEN <condition> THEN <action>". Clauses are resolved
into a dependency graph, collapsed into an immutable KernelObject and executed
by a bounded iteration loop. Failing nodes are retried and then excised, an
entropy governor pauses runs whose structure churns too much, and reflex
events patch a kernel between iterations.

# Concept

Clauses are the operations of an operad: composing two kernels yields a
kernel, and every adaptation (degradation, reflex patch, composition) produces
a new value instead of editing one in place. The engine keeps no per-run
state; an ExecutionState returned by one call is the resumption point of the
next.

# Usage

	eng := operad.New(operad.WithStrictActions(true))
	eng.Register("notify", func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		return domain.Bool(true), nil
	})

	ko, err := eng.Compile("morning", []domain.ClauseInput{
		{ID: "wake", Text: "WHEN hour >= 7 THEN set(awake, true)"},
		{ID: "coffee", Text: "WHEN awake == true THEN notify(kitchen)", DependsOn: []string{"wake"}},
	})
	if err != nil {
		log.Fatal(err)
	}

	res := eng.Execute(ctx, ko, domain.Vars{"hour": domain.Number(8)}, 0)
	if operad.IsPause(res) {
		// Ask someone, then:
		_ = eng.Decide(ko.ID, domain.DecisionContinue)
		res = eng.Resume(ctx, ko, nil, res.State, 0)
	}

# Adapters

Kernels and run states persist through pkg/ports interfaces implemented by the
memory, file, redis and badger adapters. pkg/session serialises runs with a
distributed lock and pkg/runner drives them to completion.
*/
package operad
