package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/registry"
)

// Built-in call actions.
const (
	BuiltinSet     = "set"
	BuiltinTrigger = "trigger"
)

// TriggerPrefix prefixes the context key written by trigger(event).
const TriggerPrefix = "trigger."

// Interpreter runs clause actions against a context.
type Interpreter struct {
	registry *registry.Registry
	strict   bool
	logger   *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRegistry makes registered functions callable from `name(args)` actions.
func WithRegistry(r *registry.Registry) Option {
	return func(in *Interpreter) {
		in.registry = r
	}
}

// WithStrict makes unknown call actions fail with domain.ErrUnknownFunction
// instead of succeeding as a no-op.
func WithStrict(strict bool) Option {
	return func(in *Interpreter) {
		in.strict = strict
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// NewInterpreter creates an interpreter. Without options it knows only the built-ins.
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Execute runs the clause action when its condition holds, mutating vars.
// A false condition returns an error wrapping domain.ErrConditionNotMet.
func (in *Interpreter) Execute(ctx context.Context, c domain.Clause, vars domain.Vars) (domain.ClauseResult, error) {
	res := domain.ClauseResult{ClauseID: c.ID}
	if !Evaluate(c.Condition, vars) {
		res.Message = fmt.Sprintf("condition not met: %s", c.Condition)
		return res, fmt.Errorf("%w: %s", domain.ErrConditionNotMet, c.Condition)
	}
	if vars == nil {
		return res, errors.New("nil context")
	}

	var err error
	switch c.Action.Kind {
	case domain.ActionCall:
		err = in.call(ctx, c.Action, vars, &res)
	default:
		err = in.simple(ctx, c.Action, &res)
	}
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	res.Executed = true
	res.Success = true
	return res, nil
}

// simple runs a bare action token. A registered function of the same name is
// called with no arguments; otherwise the token is acknowledged as executed.
func (in *Interpreter) simple(ctx context.Context, a domain.Action, res *domain.ClauseResult) error {
	if fn, ok := in.registry.Lookup(a.Name); ok {
		v, err := fn(ctx, nil)
		if err != nil {
			return fmt.Errorf("action %s: %w", a.Name, err)
		}
		res.Value = v
	}
	res.Message = fmt.Sprintf("executed %s", a.Name)
	return nil
}

func (in *Interpreter) call(ctx context.Context, a domain.Action, vars domain.Vars, res *domain.ClauseResult) error {
	switch a.Name {
	case BuiltinSet:
		if len(a.Args) != 2 {
			return fmt.Errorf("set: want 2 arguments, got %d", len(a.Args))
		}
		key, err := symbol(a.Args[0])
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		v := argValue(a.Args[1], vars)
		vars[key] = v
		res.Value = v
		res.Message = fmt.Sprintf("set %s = %s", key, v)
		return nil

	case BuiltinTrigger:
		if len(a.Args) != 1 {
			return fmt.Errorf("trigger: want 1 argument, got %d", len(a.Args))
		}
		event, err := symbol(a.Args[0])
		if err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
		vars[TriggerPrefix+event] = domain.Bool(true)
		res.Triggers = append(res.Triggers, event)
		res.Message = fmt.Sprintf("triggered %s", event)
		return nil
	}

	fn, ok := in.registry.Lookup(a.Name)
	if !ok {
		if in.strict {
			return fmt.Errorf("%w: %s", domain.ErrUnknownFunction, a.Name)
		}
		in.logger.Debug("unknown action treated as no-op", "action", a.Name)
		res.Message = fmt.Sprintf("executed %s (no-op)", a)
		return nil
	}

	args := make([]domain.Value, len(a.Args))
	for i, arg := range a.Args {
		args[i] = argValue(arg, vars)
	}
	v, err := fn(ctx, args)
	if err != nil {
		return fmt.Errorf("action %s: %w", a.Name, err)
	}
	res.Value = v
	res.Message = fmt.Sprintf("executed %s", a)
	return nil
}

// symbol reads a name argument: an identifier is taken literally, a string by content.
func symbol(o domain.Operand) (string, error) {
	if o.IsIdent() {
		return o.Ident, nil
	}
	if s, ok := o.Value.AsString(); ok && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("expected a name, got %s", o)
}

// argValue resolves an argument. Unbound identifiers pass through as their name.
func argValue(o domain.Operand, vars domain.Vars) domain.Value {
	if !o.IsIdent() {
		return o.Value
	}
	if v, ok := vars.Lookup(o.Ident); ok {
		return v
	}
	return domain.String(o.Ident)
}
