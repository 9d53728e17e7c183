package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
id: demo
clauses:
  - id: a
    text: WHEN x == 1 THEN set(y, 2)
    outputs: [y]
  - id: b
    text: WHEN y == 2 THEN trigger(done)
    depends_on: [a]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(bytes.NewReader(nil))
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func workflowFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "operad version")
	assert.Contains(t, out, "operad.ko/v1")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", workflowFile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "demo: 2 nodes")

	_, err = execute(t, "validate")
	assert.Error(t, err)
}

func TestCompileToFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo.json")
	_, err := execute(t, "compile", workflowFile(t), "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"format": "operad.ko/v1"`)

	out, err := execute(t, "graph", target)
	require.NoError(t, err)
	assert.Contains(t, out, "a --> b")
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", workflowFile(t), "--var", "x=1", "--decide", "continue")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
}
