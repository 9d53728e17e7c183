package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/adapters/loam"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/workflow"
)

// LoadKernel reads a kernel from path: a serialized kernel (.json) is
// decoded and verified, anything else is compiled as a workflow document.
func LoadKernel(eng *operad.Engine, path string) (*domain.KernelObject, domain.Vars, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		ko, err := eng.Unmarshal(data)
		return ko, nil, err
	}
	def, err := workflow.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	return eng.CompileWorkflow(def)
}

// CompileLibrary compiles clauses of a markdown clause library directory.
// With no ids every clause of the library is used.
func CompileLibrary(ctx context.Context, dir, id string, clauseIDs ...string) (*domain.KernelObject, error) {
	loader, err := loam.Open(dir)
	if err != nil {
		return nil, err
	}
	eng := operad.New(operad.WithClauseSource(loader))
	return eng.CompileSource(ctx, id, clauseIDs...)
}

// ParseVars turns key=value pairs into a context. Values are read as JSON
// scalars when they parse as one and as plain strings otherwise.
func ParseVars(pairs []string) (domain.Vars, error) {
	vars := make(domain.Vars, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q: want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			decoded = raw
		}
		v, err := domain.FromAny(decoded)
		if err != nil {
			v = domain.String(raw)
		}
		vars[key] = v
	}
	return vars, nil
}

// DecodeEvents reads JSON-lines reflex events. Blank lines are skipped.
func DecodeEvents(r io.Reader) ([]domain.ReflexEvent, error) {
	var events []domain.ReflexEvent
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ev domain.ReflexEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("event line %d: %w", line, err)
		}
		if ev.Type == "" {
			return nil, fmt.Errorf("event line %d: type is required", line)
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// Feed sends events on a channel closed after the last one or when ctx is done.
func Feed(ctx context.Context, events []domain.ReflexEvent) <-chan domain.ReflexEvent {
	ch := make(chan domain.ReflexEvent)
	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
