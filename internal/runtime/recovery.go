package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/pkg/domain"
)

// runNode executes one ready node through the recovery chain:
//
//  1. a false condition defers the node to the next iteration;
//  2. a clause that no longer parses is skipped (excised without retries);
//  3. an action error is retried with exponential backoff;
//  4. a node still failing is excised and its dependents released.
//
// Only a required node that cannot be excised returns an error.
func (r *run) runNode(ctx context.Context, n domain.DAGNode) error {
	r.state.CurrentNodeID = n.ID
	r.state.Record(domain.EventNodeStarted, n.ID, "")
	r.e.emitNode(ctx, r.e.hooks.OnNodeStart, r.nodeEvent(n.ID, 0, nil, 0))

	clause, err := compiler.Parse(n.ID, n.Clause.Raw)
	if err != nil {
		r.logger.WarnContext(ctx, "node skipped: clause does not parse", "node", n.ID, "error", err)
		r.state.Record(domain.EventNodeSkipped, n.ID, err.Error())
		return r.degrade(ctx, n, "syntax", 0, err)
	}

	attempt := 0
	for {
		start := r.e.now()
		res, err := r.e.interp.Execute(ctx, clause, r.vars)
		if err == nil {
			r.complete(ctx, n, res, attempt, r.e.now().Sub(start))
			return nil
		}
		if errors.Is(err, domain.ErrConditionNotMet) {
			r.vars[n.ID+DeferredSuffix] = domain.Bool(true)
			r.state.Record(domain.EventNodeDeferred, n.ID, res.Message)
			r.logger.DebugContext(ctx, "node deferred", "node", n.ID, "iteration", r.state.Iteration)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= r.retries {
			return r.degrade(ctx, n, "retries exhausted", attempt, &domain.NodeExecutionError{NodeID: n.ID, Attempt: attempt + 1, Err: err})
		}

		attempt++
		r.state.RetryCount++
		delay := r.e.backoff.Delay(attempt)
		r.state.Record(domain.EventNodeRetry, n.ID, fmt.Sprintf("attempt %d after %s: %v", attempt, delay, err))
		r.logger.WarnContext(ctx, "node failed, retrying", "node", n.ID, "attempt", attempt, "delay", delay, "error", err)
		r.e.emitNode(ctx, r.e.hooks.OnNodeRetry, r.nodeEvent(n.ID, attempt, err, 0))
		if err := r.e.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (r *run) complete(ctx context.Context, n domain.DAGNode, res domain.ClauseResult, attempts int, took time.Duration) {
	for _, sym := range n.Outputs {
		v := res.Value
		if !v.IsValid() {
			if cur, ok := r.vars.Lookup(sym); ok {
				v = cur
			} else {
				v = domain.Bool(true)
			}
		}
		r.vars[sym] = v
		r.state.Outputs[sym] = v
	}
	delete(r.vars, n.ID+DeferredSuffix)
	r.state.MarkCompleted(n.ID)
	r.state.Record(domain.EventNodeCompleted, n.ID, res.Message)
	for _, ev := range res.Triggers {
		r.state.Record(domain.EventTriggered, n.ID, ev)
	}
	r.logger.DebugContext(ctx, "node completed", "node", n.ID, "attempts", attempts+1)
	r.e.emitNode(ctx, r.e.hooks.OnNodeComplete, r.nodeEvent(n.ID, attempts, nil, took))
}

// degrade excises n from the running kernel. Required nodes cannot be
// excised, so their failure fails the run.
func (r *run) degrade(ctx context.Context, n domain.DAGNode, reason string, attempts int, cause error) error {
	if r.ko.Composition.IsRequired(n.ID) {
		return fmt.Errorf("%w: %s: %w", domain.ErrCriticalNodeFailed, n.ID, cause)
	}
	next, err := composer.Excise(r.ko, n.ID)
	if err != nil {
		return fmt.Errorf("degrade %s: %w", n.ID, err)
	}
	r.ko = next
	r.state.Excised = append(r.state.Excised, n.ID)
	r.degraded = append(r.degraded, domain.Degradation{NodeID: n.ID, Reason: fmt.Sprintf("%s: %v", reason, cause), Attempts: attempts + 1})
	r.state.Record(domain.EventNodeDegraded, n.ID, reason)
	r.logger.WarnContext(ctx, "node degraded", "node", n.ID, "reason", reason, "error", cause)
	r.e.emitNode(ctx, r.e.hooks.OnNodeDegraded, r.nodeEvent(n.ID, attempts, cause, 0))
	return nil
}

func (r *run) nodeEvent(nodeID string, attempt int, err error, took time.Duration) *domain.NodeEvent {
	return &domain.NodeEvent{
		RunID:     r.state.RunID,
		KernelID:  r.ko.ID,
		NodeID:    nodeID,
		Iteration: r.state.Iteration,
		Attempt:   attempt,
		Err:       err,
		Duration:  took,
	}
}
