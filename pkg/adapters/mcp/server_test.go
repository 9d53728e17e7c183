package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/adapters/memory"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const focusWorkflow = `
id: focus
loop:
  exit_conditions: ["trigger.focus_started == true"]
clauses:
  - id: check
    text: WHEN calendar.conflicts > 0 THEN set(blocked, true)
  - id: focus
    text: WHEN blocked == true THEN trigger(focus_started)
    depends_on: [check]
`

func newServer(t *testing.T) (*Server, *operad.Engine) {
	t.Helper()
	var n atomic.Int32
	eng := operad.New(
		operad.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		operad.WithRunIDGenerator(func() string { return fmt.Sprintf("run-%d", n.Add(1)) }),
	)
	store := memory.NewStore()
	return NewServer(eng, session.NewManager(store, store, eng), "test"), eng
}

func TestServer_ParseClause(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	c, err := s.handleParseClause(ctx, mcp.CallToolRequest{}, ParseArgs{ID: "c", Text: `WHEN mode == "focus" THEN set(dnd, true)`})
	require.NoError(t, err)
	assert.Equal(t, "mode", c.Condition.LHS.Ident)
	assert.Equal(t, "set", c.Action.Name)

	_, err = s.handleParseClause(ctx, mcp.CallToolRequest{}, ParseArgs{Text: "THEN nothing"})
	assert.ErrorIs(t, err, domain.ErrSyntax)
}

func TestServer_CompileAndExecute(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	compiled, err := s.handleCompileWorkflow(ctx, mcp.CallToolRequest{}, CompileArgs{Workflow: focusWorkflow})
	require.NoError(t, err)
	assert.Equal(t, "focus", compiled.KernelID)
	assert.Equal(t, []string{"check", "focus"}, compiled.Nodes)
	assert.Contains(t, compiled.Mermaid, "check --> focus")

	run, err := s.handleExecuteKernel(ctx, mcp.CallToolRequest{}, ExecuteArgs{
		KernelID: "focus",
		Context:  `{"calendar.conflicts": 2}`,
	})
	require.NoError(t, err)
	assert.True(t, run.Success, run.Error)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, domain.StatusCompleted, run.Status)
	assert.Equal(t, []string{"check", "focus"}, run.Completed)

	_, err = s.handleExecuteKernel(ctx, mcp.CallToolRequest{}, ExecuteArgs{KernelID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrKernelNotFound)
	_, err = s.handleExecuteKernel(ctx, mcp.CallToolRequest{}, ExecuteArgs{KernelID: "focus", Context: "[1]"})
	assert.Error(t, err)
	_, err = s.handleCompileWorkflow(ctx, mcp.CallToolRequest{}, CompileArgs{Workflow: "id: x\nclauses: []\n"})
	assert.Error(t, err)
}

func TestServer_FreezeDecideResume(t *testing.T) {
	s, eng := newServer(t)
	ctx := context.Background()
	_, err := s.handleCompileWorkflow(ctx, mcp.CallToolRequest{}, CompileArgs{Workflow: focusWorkflow})
	require.NoError(t, err)
	_, err = eng.Governor("focus").Record(domain.ChurnReshuffleAll, 1, 1)
	require.NoError(t, err)

	run, err := s.handleExecuteKernel(ctx, mcp.CallToolRequest{}, ExecuteArgs{KernelID: "focus", Context: `{"calendar.conflicts": 2}`})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFrozen, run.Status)
	require.NotNil(t, run.Decision)

	_, err = s.decide(DecideArgs{KernelID: "focus", Decision: "sometimes"})
	assert.Error(t, err)
	_, err = s.decide(DecideArgs{Decision: "reset"})
	assert.Error(t, err)
	d, err := s.decide(DecideArgs{KernelID: "focus", Decision: "reset"})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionReset, d)

	run, err = s.handleResumeRun(ctx, mcp.CallToolRequest{}, ResumeArgs{RunID: run.RunID})
	require.NoError(t, err)
	assert.True(t, run.Success, run.Error)
}

func TestServer_ListTools(t *testing.T) {
	s, _ := newServer(t)

	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	for _, tool := range []string{"parse_clause", "compile_workflow", "execute_kernel", "resume_run", "decide"} {
		assert.Contains(t, string(data), `"name":"`+tool+`"`)
	}
}

func TestParseContext(t *testing.T) {
	vars, err := parseContext("")
	require.NoError(t, err)
	assert.Nil(t, vars)

	vars, err = parseContext(`{"n": 1, "s": "x", "b": true}`)
	require.NoError(t, err)
	assert.True(t, vars["n"].Equal(domain.Number(1)))
	assert.True(t, vars["s"].Equal(domain.String("x")))
	assert.True(t, vars["b"].Equal(domain.Bool(true)))

	_, err = parseContext(`{"nested": {"a": 1}}`)
	assert.Error(t, err)
}
