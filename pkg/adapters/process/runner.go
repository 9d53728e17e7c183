// Package process exposes allow-listed external commands as clause functions.
//
// A clause action such as `lint("pkg/...")` runs the command registered as
// "lint". Arguments are passed as OPERAD_ARG_<n> environment variables and
// never as command-line flags. The trimmed stdout becomes the action's value.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/registry"
)

// ArgEnvPrefix prefixes the environment variables carrying action arguments.
const ArgEnvPrefix = "OPERAD_ARG_"

// Runner executes allow-listed local processes.
type Runner struct {
	tools   map[string]ProcessConfig
	baseDir string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithTools populates the allow-list from a loaded config.
func WithTools(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.tools[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{tools: make(map[string]ProcessConfig)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.tools[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered tool names in sorted order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind registers every tool as a function in reg.
func (r *Runner) Bind(reg *registry.Registry) {
	for _, name := range r.Names() {
		name := name
		reg.Register(name, func(ctx context.Context, args []domain.Value) (domain.Value, error) {
			return r.Execute(ctx, name, args)
		})
	}
}

// Execute runs the named tool. A non-zero exit is an error so the executor
// retries the node.
func (r *Runner) Execute(ctx context.Context, name string, args []domain.Value) (domain.Value, error) {
	tool, ok := r.tools[name]
	if !ok {
		return domain.Value{}, fmt.Errorf("process tool not registered: %s", name)
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir

	env := cmd.Environ()
	for k, v := range tool.Environment {
		env = append(env, k+"="+v)
	}
	for i, arg := range args {
		env = append(env, fmt.Sprintf("%s%d=%s", ArgEnvPrefix, i, arg.Text()))
	}
	env = append(env, fmt.Sprintf("%sCOUNT=%d", ArgEnvPrefix, len(args)))
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return domain.Value{}, fmt.Errorf("%s: execution failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(stdout.String()), nil
}

// parseOutput turns stdout into a value: a JSON scalar keeps its type,
// anything else is the trimmed text.
func parseOutput(out string) domain.Value {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return domain.Bool(true)
	}
	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
		if v, err := domain.FromAny(raw); err == nil {
			return v
		}
	}
	return domain.String(trimmed)
}
